package dbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/models"
)

// dialSession connects to the session bus, skipping the test when none is
// running.
func dialSession(t *testing.T) *Conn {
	t.Helper()
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		t.Skip("DBUS_SESSION_BUS_ADDRESS not set")
	}
	c, err := Dial(bus.ScopeSession)
	if err != nil {
		t.Fatalf("Dial(session) error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testName() string {
	return fmt.Sprintf("org.mechanix.hostbus.Test.P%d.T%d", os.Getpid(), time.Now().UnixNano())
}

func TestSession_ClaimName(t *testing.T) {
	a := dialSession(t)
	b := dialSession(t)
	name := testName()

	if err := a.ClaimName(name); err != nil {
		t.Fatalf("first ClaimName() error = %v", err)
	}
	if err := a.ClaimName(name); err != nil {
		t.Errorf("repeated ClaimName() by owner error = %v", err)
	}
	if err := b.ClaimName(name); !errors.Is(err, bus.ErrNameTaken) {
		t.Fatalf("contended ClaimName() error = %v, want ErrNameTaken", err)
	}
	if err := a.ReleaseName(name); err != nil {
		t.Fatalf("ReleaseName() error = %v", err)
	}
	if err := b.ClaimName(name); err != nil {
		t.Errorf("ClaimName() after release error = %v", err)
	}
}

func TestSession_EmitOrderAndFilter(t *testing.T) {
	emitter := dialSession(t)
	listener := dialSession(t)

	metrics := bus.Binding{Path: "/org/mechanix/Test", Interface: "org.mechanix.Test", Member: "host_metrics"}
	power := bus.Binding{Path: metrics.Path, Interface: metrics.Interface, Member: "notification"}
	elsewhere := bus.Binding{Path: "/org/mechanix/Other", Interface: metrics.Interface, Member: "host_metrics"}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Both subscriptions share one connection, so each sees the other's
	// signals on its channel and has to filter them out.
	metricsSub, err := listener.Subscribe(ctx, metrics)
	if err != nil {
		t.Fatalf("Subscribe(metrics) error = %v", err)
	}
	defer metricsSub.Close()
	powerSub, err := listener.Subscribe(ctx, power)
	if err != nil {
		t.Fatalf("Subscribe(power) error = %v", err)
	}
	defer powerSub.Close()

	const n = 20
	for i := 0; i < n; i++ {
		ev := models.NewHostMetrics(float64(i), 16000, uint64(1000+i))
		if err := emitter.Emit(ctx, metrics, ev.Payload()); err != nil {
			t.Fatalf("Emit(metrics %d) error = %v", i, err)
		}
		if err := emitter.Emit(ctx, elsewhere, ev.Payload()); err != nil {
			t.Fatalf("Emit(elsewhere %d) error = %v", i, err)
		}
		if i%5 == 0 {
			pe := models.PowerEvent{Status: "charging", Percentage: float32(i)}
			if err := emitter.Emit(ctx, power, pe.Payload()); err != nil {
				t.Fatalf("Emit(power %d) error = %v", i, err)
			}
		}
	}

	for i := 0; i < n; i++ {
		sig, err := metricsSub.Next(ctx)
		if err != nil {
			t.Fatalf("metrics Next() #%d error = %v", i, err)
		}
		if sig.Binding != metrics {
			t.Errorf("signal binding = %+v, want %+v", sig.Binding, metrics)
		}
		if sig.Sender != emitter.UniqueName() {
			t.Errorf("sender = %q, want %q", sig.Sender, emitter.UniqueName())
		}
		ev, err := models.DecodeHostMetrics(sig.Body)
		if err != nil {
			t.Fatalf("DecodeHostMetrics() #%d error = %v", i, err)
		}
		if ev.AvailableMemory != uint64(1000+i) {
			t.Fatalf("event #%d available = %d, want %d", i, ev.AvailableMemory, 1000+i)
		}
	}

	for i := 0; i < n; i += 5 {
		sig, err := powerSub.Next(ctx)
		if err != nil {
			t.Fatalf("power Next() error = %v", err)
		}
		ev, err := models.DecodePower(sig.Body)
		if err != nil {
			t.Fatalf("DecodePower() error = %v", err)
		}
		if ev.Percentage != float32(i) {
			t.Errorf("power percentage = %v, want %d", ev.Percentage, i)
		}
	}

	short, stop := context.WithTimeout(ctx, 200*time.Millisecond)
	defer stop()
	if sig, err := metricsSub.Next(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Next() after drain = %+v, %v; want DeadlineExceeded", sig, err)
	}
}

func TestSession_NextAfterClose(t *testing.T) {
	c := dialSession(t)
	b := bus.Binding{Path: "/org/mechanix/Test", Interface: "org.mechanix.Test", Member: "host_metrics"}

	sub, err := c.Subscribe(context.Background(), b)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := sub.Next(context.Background()); err != io.EOF {
		t.Errorf("Next() after Close error = %v, want io.EOF", err)
	}
}

func TestSession_CallAndIntrospect(t *testing.T) {
	server := dialSession(t)
	client := dialSession(t)
	name := testName()
	if err := server.ClaimName(name); err != nil {
		t.Fatalf("ClaimName() error = %v", err)
	}

	greeter := bus.Object{
		Path:      "/org/mechanix/MyGreeter",
		Interface: "org.mechanix.MyGreeter",
		Methods: map[string]bus.MethodFunc{
			"SayHello": func(arg string) (string, error) {
				if arg == "" {
					return "", errors.New("empty name")
				}
				return "Hello, " + arg + "!", nil
			},
		},
		Signals: map[string]models.Kind{"host_metrics": models.KindHostMetrics},
	}
	power := bus.Object{
		Path:      greeter.Path,
		Interface: "org.mechanix.Power",
		Signals:   map[string]models.Kind{"notification": models.KindPower},
	}
	for _, obj := range []bus.Object{greeter, power} {
		if err := server.ServeObject(obj); err != nil {
			t.Fatalf("ServeObject(%s) error = %v", obj.Interface, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hello := bus.Binding{Path: greeter.Path, Interface: greeter.Interface, Member: "SayHello"}
	reply, err := client.Call(ctx, name, hello, "Ada")
	if err != nil {
		t.Fatalf("Call(SayHello) error = %v", err)
	}
	if len(reply) != 1 || reply[0] != "Hello, Ada!" {
		t.Errorf("SayHello reply = %v", reply)
	}

	_, err = client.Call(ctx, name, hello, "")
	var terr *bus.TransportError
	if !errors.As(err, &terr) {
		t.Errorf("Call(SayHello, \"\") error = %v, want *TransportError", err)
	}

	introspect := bus.Binding{Path: greeter.Path, Interface: "org.freedesktop.DBus.Introspectable", Member: "Introspect"}
	reply, err = client.Call(ctx, name, introspect)
	if err != nil {
		t.Fatalf("Call(Introspect) error = %v", err)
	}
	if len(reply) != 1 {
		t.Fatalf("Introspect reply = %v", reply)
	}
	xml, _ := reply[0].(string)
	for _, iface := range []string{greeter.Interface, power.Interface} {
		if !strings.Contains(xml, `interface name="`+iface+`"`) {
			t.Errorf("introspection missing %s:\n%s", iface, xml)
		}
	}
}
