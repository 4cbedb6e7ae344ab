package bus

import (
	"errors"
	"fmt"
)

var (
	ErrNameTaken      = errors.New("bus name already owned by another connection")
	ErrClosed         = errors.New("bus connection closed")
	ErrNoSuchObject   = errors.New("no such object")
	ErrNoSuchMethod   = errors.New("no such method")
	ErrServiceUnknown = errors.New("service has no owner")
)

// ConnectionError is returned when the bus cannot be reached.
type ConnectionError struct {
	Scope Scope
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s bus: %v", e.Scope, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransportError is returned when emitting, subscribing, calling or
// receiving fails on an established connection.
type TransportError struct {
	Op      string
	Binding Binding
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Binding, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
