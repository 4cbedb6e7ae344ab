package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prabalesh/hostbus/internal/bus/memory"
	"github.com/prabalesh/hostbus/internal/clock"
	"github.com/prabalesh/hostbus/internal/config"
	"github.com/prabalesh/hostbus/internal/models"
)

func TestRunDemoSession(t *testing.T) {
	if _, err := os.Stat("/proc/stat"); err != nil {
		t.Skip("procfs not available")
	}

	cfg := config.Default()
	cfg.Metrics.Source = "procfs"
	cfg.Metrics.Interval = 20 * time.Millisecond
	cfg.Metrics.Settle = 5 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := runDemoSession(ctx, cfg, &out, 2); err != nil {
		t.Fatalf("runDemoSession() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("output has %d lines, want 3:\n%s", len(lines), out.String())
	}
	if lines[0] != "Hello hostbus!" {
		t.Errorf("greeting = %q", lines[0])
	}
	for _, l := range lines[1:] {
		if !strings.Contains(l, "host_metrics cpu=") {
			t.Errorf("event line = %q", l)
		}
	}
}

func TestNewPublisher_Channels(t *testing.T) {
	cfg := config.Default()
	cfg.Power.Enabled = true
	cfg.Power.Path = "/org/mechanix/services/Power"
	cfg.Power.Interface = "org.mechanix.services.Power"

	if _, err := newPublisher(memory.New().Connect(), cfg, clock.Real()); err != nil {
		t.Errorf("newPublisher() error = %v", err)
	}

	cfg.Metrics.Source = "sysctl"
	if _, err := newPublisher(memory.New().Connect(), cfg, clock.Real()); err == nil {
		t.Error("newPublisher() with unknown source should fail")
	}
}

func TestBindingFor(t *testing.T) {
	cfg := config.Default()

	got, err := bindingFor(cfg, models.KindPower)
	if err != nil {
		t.Fatalf("bindingFor(power) error = %v", err)
	}
	if got.Member != "notification" {
		t.Errorf("power member = %q, want notification", got.Member)
	}
	if _, err := bindingFor(cfg, models.KindWireless); err == nil {
		t.Error("bindingFor(wireless) should fail: nothing emits it")
	}
}

func TestFormatEvent(t *testing.T) {
	got := formatEvent(models.HostMetricsEvent{CPUUsage: 12.5, TotalMemory: 100, AvailableMemory: 25})
	want := "host_metrics cpu=12.5% total=100 available=25 used=75.0%"
	if got != want {
		t.Errorf("formatEvent() = %q, want %q", got, want)
	}
	if got := formatEvent(models.PowerEvent{Status: "full", Percentage: 100}); got != "power status=full percentage=100%" {
		t.Errorf("formatEvent(power) = %q", got)
	}
}

func TestEventPrinter_JSON(t *testing.T) {
	var out bytes.Buffer
	if err := eventPrinter(&out, true)(models.PowerEvent{Status: "charging", Percentage: 42}); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(out.String()); got != `{"status":"charging","percentage":42}` {
		t.Errorf("JSON output = %s", got)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "hostbus.yaml")

	if err := writeDefaultConfig(path, false); err != nil {
		t.Fatalf("writeDefaultConfig() error = %v", err)
	}
	if err := writeDefaultConfig(path, false); err == nil {
		t.Error("second write without force should fail")
	}
	if err := writeDefaultConfig(path, true); err != nil {
		t.Errorf("write with force error = %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() of written defaults error = %v", err)
	}
	if cfg.Metrics.Interval != 15*time.Second {
		t.Errorf("Metrics.Interval = %v, want 15s", cfg.Metrics.Interval)
	}
}
