// Package dbus implements the bus capability on a real D-Bus daemon using
// godbus. Event payloads travel as a single a{sv} argument.
package dbus

import (
	"context"
	"fmt"
	"io"
	"sync"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/rs/zerolog/log"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/models"
)

// signalBuffer sizes the per-subscription channel. The sequential signal
// handler queues behind it, so a full buffer delays but never drops.
const signalBuffer = 64

// Conn is a bus.Conn on a session or system D-Bus.
type Conn struct {
	conn  *godbus.Conn
	scope bus.Scope

	// served holds every interface exported at a path. Introspection is
	// one node per path, so it is re-exported whole on each ServeObject.
	mu     sync.Mutex
	served map[godbus.ObjectPath]map[string]introspect.Interface
}

var _ bus.Conn = (*Conn)(nil)

// Dial connects to the session or system bus. Signals are delivered
// through a sequential handler so each subscription sees emission order.
func Dial(scope bus.Scope) (*Conn, error) {
	opts := []godbus.ConnOption{
		godbus.WithSignalHandler(godbus.NewSequentialSignalHandler()),
	}

	var (
		conn *godbus.Conn
		err  error
	)
	switch scope {
	case bus.ScopeSession:
		conn, err = godbus.ConnectSessionBus(opts...)
	case bus.ScopeSystem:
		conn, err = godbus.ConnectSystemBus(opts...)
	default:
		err = fmt.Errorf("scope %q is not served by D-Bus", scope)
	}
	if err != nil {
		return nil, &bus.ConnectionError{Scope: scope, Err: err}
	}

	log.Debug().Str("scope", string(scope)).Str("unique_name", conn.Names()[0]).Msg("connected to D-Bus")
	return &Conn{
		conn:   conn,
		scope:  scope,
		served: make(map[godbus.ObjectPath]map[string]introspect.Interface),
	}, nil
}

func (c *Conn) UniqueName() string {
	names := c.conn.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (c *Conn) ClaimName(name string) error {
	reply, err := c.conn.RequestName(name, godbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request name %s: %w", name, err)
	}
	switch reply {
	case godbus.RequestNameReplyPrimaryOwner, godbus.RequestNameReplyAlreadyOwner:
		return nil
	}
	return fmt.Errorf("request name %s: %w", name, bus.ErrNameTaken)
}

func (c *Conn) ReleaseName(name string) error {
	if _, err := c.conn.ReleaseName(name); err != nil {
		return fmt.Errorf("release name %s: %w", name, err)
	}
	return nil
}

func (c *Conn) ServeObject(obj bus.Object) error {
	path := godbus.ObjectPath(obj.Path)

	table := make(map[string]interface{}, len(obj.Methods))
	for name, fn := range obj.Methods {
		table[name] = func(arg string) (string, *godbus.Error) {
			reply, err := fn(arg)
			if err != nil {
				return "", godbus.MakeFailedError(err)
			}
			return reply, nil
		}
	}
	if err := c.conn.ExportMethodTable(table, path, obj.Interface); err != nil {
		return fmt.Errorf("export %s at %s: %w", obj.Interface, obj.Path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ifaces := c.served[path]
	if ifaces == nil {
		ifaces = make(map[string]introspect.Interface)
		c.served[path] = ifaces
	}
	ifaces[obj.Interface] = introspectInterface(obj)

	node := introspectNode(obj.Path, ifaces)
	if err := c.conn.Export(introspect.NewIntrospectable(node), path, introspect.IntrospectData.Name); err != nil {
		return fmt.Errorf("export introspection at %s: %w", obj.Path, err)
	}
	return nil
}

func (c *Conn) Emit(ctx context.Context, b bus.Binding, body models.Payload) error {
	if err := ctx.Err(); err != nil {
		return &bus.TransportError{Op: "emit", Binding: b, Err: err}
	}
	dict, err := toVariants(body)
	if err != nil {
		return &bus.TransportError{Op: "emit", Binding: b, Err: err}
	}
	if err := c.conn.Emit(godbus.ObjectPath(b.Path), b.Name(), dict); err != nil {
		return &bus.TransportError{Op: "emit", Binding: b, Err: err}
	}
	return nil
}

func (c *Conn) Subscribe(ctx context.Context, b bus.Binding) (bus.Subscription, error) {
	match := []godbus.MatchOption{
		godbus.WithMatchObjectPath(godbus.ObjectPath(b.Path)),
		godbus.WithMatchInterface(b.Interface),
		godbus.WithMatchMember(b.Member),
	}
	if err := c.conn.AddMatchSignalContext(ctx, match...); err != nil {
		return nil, &bus.TransportError{Op: "subscribe", Binding: b, Err: err}
	}

	ch := make(chan *godbus.Signal, signalBuffer)
	c.conn.Signal(ch)
	return &subscription{
		conn:    c.conn,
		binding: b,
		match:   match,
		ch:      ch,
		done:    make(chan struct{}),
	}, nil
}

func (c *Conn) Call(ctx context.Context, service string, b bus.Binding, args ...any) ([]any, error) {
	obj := c.conn.Object(service, godbus.ObjectPath(b.Path))
	call := obj.CallWithContext(ctx, b.Name(), 0, args...)
	if call.Err != nil {
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: call.Err}
	}
	return call.Body, nil
}

func (c *Conn) Close() error {
	return c.conn.Close()
}

type subscription struct {
	conn    *godbus.Conn
	binding bus.Binding
	match   []godbus.MatchOption
	ch      chan *godbus.Signal

	once sync.Once
	done chan struct{}
}

func (s *subscription) Next(ctx context.Context) (bus.Signal, error) {
	path := godbus.ObjectPath(s.binding.Path)
	name := s.binding.Name()
	for {
		select {
		case sig, ok := <-s.ch:
			if !ok {
				return bus.Signal{}, io.EOF
			}
			// Every channel registered on the connection sees every
			// signal, so filter down to this binding.
			if sig.Path != path || sig.Name != name {
				continue
			}
			body, err := bodyPayload(sig.Body)
			if err != nil {
				return bus.Signal{}, err
			}
			return bus.Signal{Sender: sig.Sender, Binding: s.binding, Body: body}, nil
		case <-s.done:
			return bus.Signal{}, io.EOF
		case <-ctx.Done():
			return bus.Signal{}, ctx.Err()
		}
	}
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.conn.RemoveSignal(s.ch)
		err = s.conn.RemoveMatchSignal(s.match...)
	})
	return err
}
