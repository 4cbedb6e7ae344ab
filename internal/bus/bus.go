// Package bus defines the narrow transport capability the publisher and
// subscriber are written against. Implementations live in the dbus
// (system/session D-Bus) and memory (in-process) subpackages.
package bus

import (
	"context"
	"fmt"
	"strings"

	"github.com/prabalesh/hostbus/internal/models"
)

// Scope selects which bus a connection is made to.
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeSystem  Scope = "system"
	ScopeMemory  Scope = "memory"
)

// Binding identifies where a signal is emitted and where it is subscribed.
// For method calls Member is the method name.
type Binding struct {
	Path      string
	Interface string
	Member    string
}

func (b Binding) String() string {
	return b.Path + ":" + b.Interface + "." + b.Member
}

// Name is the dotted interface.member form used on the wire.
func (b Binding) Name() string {
	return b.Interface + "." + b.Member
}

// Signal is one received notification.
type Signal struct {
	Sender  string
	Binding Binding
	Body    models.Payload
}

// MethodFunc answers a single-argument string method. Methods run on the
// transport's dispatch goroutine.
type MethodFunc func(arg string) (string, error)

// Object is the set of methods and signals served at a path.
type Object struct {
	Path      string
	Interface string
	Methods   map[string]MethodFunc
	// Signals maps member names to the kind of payload they carry.
	Signals map[string]models.Kind
}

// Conn is one connection to a bus.
type Conn interface {
	// UniqueName is the connection's bus-assigned address.
	UniqueName() string

	// ClaimName takes ownership of a well-known name. It returns
	// ErrNameTaken when another connection already owns it.
	ClaimName(name string) error
	ReleaseName(name string) error

	ServeObject(obj Object) error

	// Emit broadcasts a signal. It does not wait for, or know about,
	// receivers.
	Emit(ctx context.Context, b Binding, body models.Payload) error

	// Subscribe opens a stream of signals matching b. Only signals emitted
	// after Subscribe returns are delivered.
	Subscribe(ctx context.Context, b Binding) (Subscription, error)

	// Call invokes a method on the object owned by service.
	Call(ctx context.Context, service string, b Binding, args ...any) ([]any, error)

	Close() error
}

// Subscription is an ordered, unbounded stream of signals.
type Subscription interface {
	// Next blocks until a signal arrives. It returns io.EOF once the
	// subscription is closed or the connection is gone, and ctx.Err() if
	// ctx is cancelled first.
	Next(ctx context.Context) (Signal, error)
	Close() error
}

// ValidateName checks a well-known bus name: two or more dot separated
// elements, none empty, none starting with a digit.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > 255 {
		return fmt.Errorf("bus name %q: invalid length", name)
	}
	parts := strings.Split(name, ".")
	if len(parts) < 2 {
		return fmt.Errorf("bus name %q: needs at least two elements", name)
	}
	for _, p := range parts {
		if p == "" || (p[0] >= '0' && p[0] <= '9') || !validElement(p, "_-") {
			return fmt.Errorf("bus name %q: invalid element %q", name, p)
		}
	}
	return nil
}

// ValidateInterface checks an interface name. The rules match bus names
// except that '-' is not allowed.
func ValidateInterface(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if strings.Contains(name, "-") {
		return fmt.Errorf("interface %q: '-' is not allowed", name)
	}
	return nil
}

// ValidateMember checks a method or signal name.
func ValidateMember(name string) error {
	if name == "" || len(name) > 255 || (name[0] >= '0' && name[0] <= '9') || !validElement(name, "_") {
		return fmt.Errorf("member %q: invalid", name)
	}
	return nil
}

// ValidatePath checks an object path.
func ValidatePath(path string) error {
	if path == "/" {
		return nil
	}
	if !strings.HasPrefix(path, "/") || strings.HasSuffix(path, "/") {
		return fmt.Errorf("object path %q: must start and not end with '/'", path)
	}
	for _, p := range strings.Split(path[1:], "/") {
		if p == "" || !validElement(p, "_") {
			return fmt.Errorf("object path %q: invalid element %q", path, p)
		}
	}
	return nil
}

func validElement(s, extra string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune(extra, r):
		default:
			return false
		}
	}
	return true
}
