// Package publisher owns a well-known bus name, serves the greeter object
// and broadcasts sampled events on a fixed schedule.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/clock"
	"github.com/prabalesh/hostbus/internal/collector"
	"github.com/prabalesh/hostbus/internal/models"
)

// MethodSayHello is the greeting method served next to the signals.
const MethodSayHello = "SayHello"

var (
	ErrAlreadyRegistered = errors.New("publisher already registered")
	ErrStopped           = errors.New("publisher stopped")
)

// State is the publisher lifecycle position.
type State int32

const (
	StateUnregistered State = iota
	StateRegistered
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting down"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// SampleFunc produces the event for one tick.
type SampleFunc func(ctx context.Context) (models.Event, error)

// Channel is one periodic emission: every Interval, Sample is called and
// its event is emitted on Binding.
type Channel struct {
	Binding  bus.Binding
	Kind     models.Kind
	Interval time.Duration
	Sample   SampleFunc
}

// MetricsChannel emits host metrics from src.
func MetricsChannel(b bus.Binding, interval time.Duration, src collector.MetricsSource) Channel {
	return Channel{
		Binding:  b,
		Kind:     models.KindHostMetrics,
		Interval: interval,
		Sample: func(ctx context.Context) (models.Event, error) {
			ev, err := src.Sample(ctx)
			if err != nil {
				return nil, err
			}
			return ev, nil
		},
	}
}

// PowerSource is satisfied by collector.PowerCollector.
type PowerSource interface {
	Sample(ctx context.Context) (models.PowerEvent, error)
}

// PowerChannel emits battery state from src.
func PowerChannel(b bus.Binding, interval time.Duration, src PowerSource) Channel {
	return Channel{
		Binding:  b,
		Kind:     models.KindPower,
		Interval: interval,
		Sample: func(ctx context.Context) (models.Event, error) {
			ev, err := src.Sample(ctx)
			if err != nil {
				return nil, err
			}
			return ev, nil
		},
	}
}

type Options struct {
	// Service is the well-known name claimed on the bus.
	Service string
	// Path and Interface locate the object serving SayHello.
	Path      string
	Interface string
	Channels  []Channel
	// Clock defaults to wall time.
	Clock clock.Clock
}

func (o Options) validate() error {
	if err := bus.ValidateName(o.Service); err != nil {
		return err
	}
	if err := bus.ValidatePath(o.Path); err != nil {
		return err
	}
	if err := bus.ValidateInterface(o.Interface); err != nil {
		return err
	}
	if len(o.Channels) == 0 {
		return errors.New("no channels configured")
	}
	for _, ch := range o.Channels {
		if err := bus.ValidatePath(ch.Binding.Path); err != nil {
			return err
		}
		if err := bus.ValidateInterface(ch.Binding.Interface); err != nil {
			return err
		}
		if err := bus.ValidateMember(ch.Binding.Member); err != nil {
			return err
		}
		if ch.Interval <= 0 {
			return fmt.Errorf("channel %s: interval must be positive", ch.Binding.Member)
		}
		if ch.Sample == nil {
			return fmt.Errorf("channel %s: no sampler", ch.Binding.Member)
		}
	}
	return nil
}

type Publisher struct {
	conn  bus.Conn
	opts  Options
	clock clock.Clock

	state  atomic.Int32
	mu     sync.Mutex
	reg    *Registration
	emitMu sync.Mutex
}

// New checks opts and returns a publisher that has not yet touched the bus.
func New(conn bus.Conn, opts Options) (*Publisher, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Publisher{conn: conn, opts: opts, clock: clk}, nil
}

func (p *Publisher) State() State {
	return State(p.state.Load())
}

// SayHello greets name.
func SayHello(name string) string {
	return "Hello " + name + "!"
}

// Register claims the service name and serves the publisher's objects. The
// returned Registration is also released by Run on exit.
func (p *Publisher) Register() (*Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.State() {
	case StateUnregistered:
	case StateStopped:
		return nil, ErrStopped
	default:
		return nil, ErrAlreadyRegistered
	}

	if err := p.conn.ClaimName(p.opts.Service); err != nil {
		return nil, fmt.Errorf("claim %s: %w", p.opts.Service, err)
	}
	reg := &Registration{conn: p.conn, name: p.opts.Service}

	for _, obj := range p.objects() {
		if err := p.conn.ServeObject(obj); err != nil {
			err = fmt.Errorf("serve %s: %w", obj.Path, err)
			if relErr := reg.Release(); relErr != nil {
				err = errors.Join(err, relErr)
			}
			return nil, err
		}
	}

	p.reg = reg
	p.state.Store(int32(StateRegistered))
	log.Info().
		Str("service", p.opts.Service).
		Str("path", p.opts.Path).
		Str("unique_name", p.conn.UniqueName()).
		Msg("registered on bus")
	return reg, nil
}

// objects groups the channel signals by path and interface. The greeter
// object always carries SayHello.
func (p *Publisher) objects() []bus.Object {
	type key struct{ path, iface string }
	greeter := key{p.opts.Path, p.opts.Interface}
	byKey := map[key]*bus.Object{
		greeter: {
			Path:      p.opts.Path,
			Interface: p.opts.Interface,
			Methods: map[string]bus.MethodFunc{
				MethodSayHello: func(name string) (string, error) {
					log.Debug().Str("name", name).Msg("SayHello")
					return SayHello(name), nil
				},
			},
			Signals: map[string]models.Kind{},
		},
	}
	order := []key{greeter}

	for _, ch := range p.opts.Channels {
		k := key{ch.Binding.Path, ch.Binding.Interface}
		obj, ok := byKey[k]
		if !ok {
			obj = &bus.Object{Path: k.path, Interface: k.iface, Signals: map[string]models.Kind{}}
			byKey[k] = obj
			order = append(order, k)
		}
		obj.Signals[ch.Binding.Member] = ch.Kind
	}

	objs := make([]bus.Object, 0, len(order))
	for _, k := range order {
		objs = append(objs, *byKey[k])
	}
	return objs
}

// Run registers if needed, then drives every channel until ctx is
// cancelled or a channel fails. The registration is released before Run
// returns. Cancellation is not an error.
func (p *Publisher) Run(ctx context.Context) error {
	p.mu.Lock()
	reg := p.reg
	p.mu.Unlock()
	if reg == nil {
		var err error
		if reg, err = p.Register(); err != nil {
			return err
		}
	}
	if !p.state.CompareAndSwap(int32(StateRegistered), int32(StateRunning)) {
		return fmt.Errorf("run from state %s: %w", p.State(), ErrAlreadyRegistered)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, ch := range p.opts.Channels {
		g.Go(func() error {
			return p.loop(gctx, ch)
		})
	}
	err := g.Wait()

	p.state.Store(int32(StateShuttingDown))
	log.Info().Str("service", p.opts.Service).Msg("shutting down")
	if relErr := reg.Release(); relErr != nil {
		err = errors.Join(err, fmt.Errorf("release %s: %w", p.opts.Service, relErr))
	}
	p.state.Store(int32(StateStopped))
	return err
}

// loop fires the first tick at once and each later tick at start plus a
// whole number of intervals. A tick that overruns makes every deadline it
// missed fire back to back.
func (p *Publisher) loop(ctx context.Context, ch Channel) error {
	next := p.clock.Now()
	for {
		if wait := next.Sub(p.clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-p.clock.After(wait):
			}
		} else if ctx.Err() != nil {
			return nil
		}

		// The tick in flight finishes even if ctx is cancelled meanwhile.
		if err := p.tick(context.WithoutCancel(ctx), ch); err != nil {
			return err
		}
		next = next.Add(ch.Interval)
	}
}

func (p *Publisher) tick(ctx context.Context, ch Channel) error {
	ev, err := ch.Sample(ctx)
	if err != nil {
		var se *collector.SamplingError
		if errors.As(err, &se) {
			log.Warn().Err(err).Str("member", ch.Binding.Member).Msg("sampling failed, skipping tick")
			return nil
		}
		return err
	}

	if v, ok := ev.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			log.Warn().Err(err).Str("member", ch.Binding.Member).Msg("invalid reading, skipping tick")
			return nil
		}
	}

	p.emitMu.Lock()
	err = p.conn.Emit(ctx, ch.Binding, ev.Payload())
	p.emitMu.Unlock()
	if err != nil {
		return err
	}

	log.Debug().Str("member", ch.Binding.Member).Interface("payload", ev.Payload()).Msg("emitted")
	return nil
}

// Registration is ownership of the service name. Release is safe to call
// more than once; only the first call touches the bus.
type Registration struct {
	conn bus.Conn
	name string

	once sync.Once
	err  error
}

func (r *Registration) Name() string { return r.name }

func (r *Registration) Release() error {
	r.once.Do(func() {
		r.err = r.conn.ReleaseName(r.name)
		log.Debug().Str("service", r.name).Err(r.err).Msg("released name")
	})
	return r.err
}
