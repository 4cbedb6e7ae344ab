// Package subscriber receives typed events from a publisher's bindings.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/models"
)

// Client talks to one service over a connection the caller owns.
type Client struct {
	conn    bus.Conn
	service string
}

func NewClient(conn bus.Conn, service string) *Client {
	return &Client{conn: conn, service: service}
}

// Subscribe opens a stream of kind events emitted on b. Events emitted
// before Subscribe returns are not delivered.
func (c *Client) Subscribe(ctx context.Context, kind models.Kind, b bus.Binding) (*Subscription, error) {
	if models.Schema(kind) == nil {
		return nil, fmt.Errorf("subscribe %s: unknown event kind %q", b, kind)
	}
	sub, err := c.conn.Subscribe(ctx, b)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("binding", b.String()).Str("kind", string(kind)).Msg("subscribed")
	return &Subscription{kind: kind, binding: b, sub: sub}, nil
}

// Greet calls SayHello on the service and returns the reply.
func (c *Client) Greet(ctx context.Context, b bus.Binding, name string) (string, error) {
	reply, err := c.conn.Call(ctx, c.service, b, name)
	if err != nil {
		return "", err
	}
	if len(reply) != 1 {
		return "", &bus.TransportError{Op: "call", Binding: b, Err: fmt.Errorf("want 1 reply value, got %d", len(reply))}
	}
	s, ok := reply[0].(string)
	if !ok {
		return "", &bus.TransportError{Op: "call", Binding: b, Err: fmt.Errorf("want string reply, got %T", reply[0])}
	}
	return s, nil
}

type Subscription struct {
	kind    models.Kind
	binding bus.Binding
	sub     bus.Subscription
}

func (s *Subscription) Kind() models.Kind { return s.kind }

func (s *Subscription) Binding() bus.Binding { return s.binding }

// Next blocks for the next event. It returns io.EOF when the stream has
// ended and ctx.Err() when ctx is cancelled first. A payload that does not
// match the kind yields a *models.DecodeError.
func (s *Subscription) Next(ctx context.Context) (models.Event, error) {
	sig, err := s.sub.Next(ctx)
	if err != nil {
		return nil, err
	}
	ev, err := models.Decode(s.kind, sig.Body)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Subscription) Close() error {
	return s.sub.Close()
}

// Handler receives each event in arrival order. A non-nil return ends
// Consume with that error.
type Handler func(ev models.Event) error

// Consume hands each event to h before asking for the next. It returns nil
// when the stream ends, ctx.Err() when cancelled, and the first decode or
// transport error otherwise.
func Consume(ctx context.Context, sub *Subscription, h Handler) error {
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug().Str("binding", sub.binding.String()).Msg("stream ended")
				return nil
			}
			var de *models.DecodeError
			if errors.As(err, &de) {
				if de.Kind == "" {
					de.Kind = sub.kind
				}
				log.Error().Err(err).Str("binding", sub.binding.String()).Msg("undecodable event")
			}
			return err
		}
		if err := h(ev); err != nil {
			return err
		}
	}
}
