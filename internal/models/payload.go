package models

import (
	"fmt"
	"math"
)

// FieldType is the wire type of one payload field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldBool
	FieldFloat32
	FieldUint64
)

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldBool:
		return "bool"
	case FieldFloat32:
		return "float32"
	case FieldUint64:
		return "uint64"
	}
	return "unknown"
}

// Field describes a single named entry of an event payload.
type Field struct {
	Name string
	Type FieldType
}

// Payload is the self-describing key/value form of an event. It maps to a
// D-Bus a{sv} dictionary and to a CBOR map on the in-process bus.
type Payload map[string]any

// DecodeError reports a payload that does not match the schema of the kind
// it was decoded as.
type DecodeError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("decode %s: field %q: %s", e.Kind, e.Field, e.Reason)
}

func (p Payload) lookup(kind Kind, name string) (any, error) {
	v, ok := p[name]
	if !ok {
		return nil, &DecodeError{Kind: kind, Field: name, Reason: "missing"}
	}
	return v, nil
}

func mistyped(kind Kind, name string, want FieldType, got any) error {
	return &DecodeError{
		Kind:   kind,
		Field:  name,
		Reason: fmt.Sprintf("want %s, got %T", want, got),
	}
}

func (p Payload) getString(kind Kind, name string) (string, error) {
	v, err := p.lookup(kind, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", mistyped(kind, name, FieldString, v)
	}
	return s, nil
}

func (p Payload) getBool(kind Kind, name string) (bool, error) {
	v, err := p.lookup(kind, name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, mistyped(kind, name, FieldBool, v)
	}
	return b, nil
}

// getFloat32 accepts float64 as well: D-Bus has no single precision type
// and CBOR decoders widen floats.
func (p Payload) getFloat32(kind Kind, name string) (float32, error) {
	v, err := p.lookup(kind, name)
	if err != nil {
		return 0, err
	}
	switch f := v.(type) {
	case float32:
		return f, nil
	case float64:
		if math.Abs(f) > math.MaxFloat32 {
			return 0, &DecodeError{Kind: kind, Field: name, Reason: "out of float32 range"}
		}
		return float32(f), nil
	}
	return 0, mistyped(kind, name, FieldFloat32, v)
}

func (p Payload) getUint64(kind Kind, name string) (uint64, error) {
	v, err := p.lookup(kind, name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint:
		return uint64(n), nil
	case int64:
		if n >= 0 {
			return uint64(n), nil
		}
	case int32:
		if n >= 0 {
			return uint64(n), nil
		}
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	default:
		return 0, mistyped(kind, name, FieldUint64, v)
	}
	return 0, &DecodeError{Kind: kind, Field: name, Reason: "negative value"}
}
