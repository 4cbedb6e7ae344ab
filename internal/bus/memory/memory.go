// Package memory is an in-process bus. Signals are CBOR encoded on emit and
// decoded on receive so that subscribers only ever see the self-describing
// wire form, exactly as they would over D-Bus.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/models"
)

// Bus routes names, method calls and signals between the connections made
// from it.
type Bus struct {
	mu      sync.Mutex
	owners  map[string]*Conn
	objects map[objectKey]bus.Object
	subs    map[*subscription]struct{}
	enc     cbor.EncMode
}

type objectKey struct {
	owner *Conn
	path  string
	iface string
}

// New creates an empty bus.
func New() *Bus {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("memory bus: cbor encoder: %v", err))
	}
	return &Bus{
		owners:  make(map[string]*Conn),
		objects: make(map[objectKey]bus.Object),
		subs:    make(map[*subscription]struct{}),
		enc:     enc,
	}
}

// Connect opens a new connection with its own unique name.
func (b *Bus) Connect() *Conn {
	return &Conn{bus: b, name: ":mem." + uuid.NewString()}
}

// Owner reports the unique name owning a well-known name, if any.
func (b *Bus) Owner(name string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.owners[name]
	if !ok {
		return "", false
	}
	return c.name, true
}

// Conn is a connection to a memory Bus.
type Conn struct {
	bus    *Bus
	name   string
	closed bool
}

var _ bus.Conn = (*Conn)(nil)

func (c *Conn) UniqueName() string { return c.name }

func (c *Conn) ClaimName(name string) error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if c.closed {
		return bus.ErrClosed
	}
	if owner, ok := c.bus.owners[name]; ok && owner != c {
		return bus.ErrNameTaken
	}
	c.bus.owners[name] = c
	return nil
}

func (c *Conn) ReleaseName(name string) error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if owner, ok := c.bus.owners[name]; ok && owner == c {
		delete(c.bus.owners, name)
	}
	return nil
}

func (c *Conn) ServeObject(obj bus.Object) error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if c.closed {
		return bus.ErrClosed
	}
	c.bus.objects[objectKey{owner: c, path: obj.Path, iface: obj.Interface}] = obj
	return nil
}

func (c *Conn) Emit(ctx context.Context, b bus.Binding, body models.Payload) error {
	if err := ctx.Err(); err != nil {
		return &bus.TransportError{Op: "emit", Binding: b, Err: err}
	}
	data, err := c.bus.enc.Marshal(map[string]any(body))
	if err != nil {
		return &bus.TransportError{Op: "emit", Binding: b, Err: err}
	}

	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if c.closed {
		return &bus.TransportError{Op: "emit", Binding: b, Err: bus.ErrClosed}
	}
	// Delivery happens under the bus lock so every subscriber observes
	// emissions in the same order.
	for s := range c.bus.subs {
		if s.binding == b {
			s.push(frame{sender: c.name, data: data})
		}
	}
	return nil
}

func (c *Conn) Subscribe(ctx context.Context, b bus.Binding) (bus.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, &bus.TransportError{Op: "subscribe", Binding: b, Err: err}
	}
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if c.closed {
		return nil, &bus.TransportError{Op: "subscribe", Binding: b, Err: bus.ErrClosed}
	}
	s := &subscription{
		id:      uuid.NewString(),
		conn:    c,
		binding: b,
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	c.bus.subs[s] = struct{}{}
	log.Debug().Str("subscription", s.id).Str("binding", b.String()).Msg("memory bus subscription opened")
	return s, nil
}

func (c *Conn) Call(ctx context.Context, service string, b bus.Binding, args ...any) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: err}
	}

	c.bus.mu.Lock()
	if c.closed {
		c.bus.mu.Unlock()
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: bus.ErrClosed}
	}
	owner, ok := c.bus.owners[service]
	if !ok {
		c.bus.mu.Unlock()
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: fmt.Errorf("%w: %s", bus.ErrServiceUnknown, service)}
	}
	obj, ok := c.bus.objects[objectKey{owner: owner, path: b.Path, iface: b.Interface}]
	c.bus.mu.Unlock()
	if !ok {
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: bus.ErrNoSuchObject}
	}

	method, ok := obj.Methods[b.Member]
	if !ok {
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: bus.ErrNoSuchMethod}
	}
	if len(args) != 1 {
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: fmt.Errorf("want 1 argument, got %d", len(args))}
	}
	arg, ok := args[0].(string)
	if !ok {
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: fmt.Errorf("want string argument, got %T", args[0])}
	}
	reply, err := method(arg)
	if err != nil {
		return nil, &bus.TransportError{Op: "call", Binding: b, Err: err}
	}
	return []any{reply}, nil
}

// Close releases every name and object owned by the connection and ends
// its subscriptions.
func (c *Conn) Close() error {
	c.bus.mu.Lock()
	defer c.bus.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for name, owner := range c.bus.owners {
		if owner == c {
			delete(c.bus.owners, name)
		}
	}
	for key := range c.bus.objects {
		if key.owner == c {
			delete(c.bus.objects, key)
		}
	}
	for s := range c.bus.subs {
		if s.conn == c {
			delete(c.bus.subs, s)
			s.shutdown()
		}
	}
	return nil
}

type frame struct {
	sender string
	data   []byte
}

type subscription struct {
	id      string
	conn    *Conn
	binding bus.Binding

	mu     sync.Mutex
	queue  []frame
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func (s *subscription) push(f frame) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, f)
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
}

func (s *subscription) Next(ctx context.Context) (bus.Signal, error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return bus.Signal{}, io.EOF
		}
		if len(s.queue) > 0 {
			f := s.queue[0]
			s.queue[0] = frame{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return s.decode(f)
		}
		s.mu.Unlock()

		select {
		case <-s.ready:
		case <-s.done:
		case <-ctx.Done():
			return bus.Signal{}, ctx.Err()
		}
	}
}

func (s *subscription) decode(f frame) (bus.Signal, error) {
	var body map[string]any
	if err := cbor.Unmarshal(f.data, &body); err != nil {
		return bus.Signal{}, &bus.TransportError{Op: "receive", Binding: s.binding, Err: err}
	}
	return bus.Signal{Sender: f.sender, Binding: s.binding, Body: models.Payload(body)}, nil
}

func (s *subscription) Close() error {
	s.conn.bus.mu.Lock()
	delete(s.conn.bus.subs, s)
	s.conn.bus.mu.Unlock()
	s.shutdown()
	return nil
}

func (s *subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.queue = nil
	close(s.done)
	log.Debug().Str("subscription", s.id).Msg("memory bus subscription closed")
}
