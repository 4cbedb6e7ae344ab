package collector

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prabalesh/hostbus/internal/models"
)

func writeBattery(t *testing.T, root, name, capacity, status string) {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "capacity"), []byte(capacity), 0o644); err != nil {
		t.Fatal(err)
	}
	if status != "" {
		if err := os.WriteFile(filepath.Join(dir, "status"), []byte(status), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPowerCollector_Sample(t *testing.T) {
	tests := []struct {
		name     string
		capacity string
		status   string
		want     models.PowerEvent
	}{
		{"discharging", "73\n", "Discharging\n", models.PowerEvent{Status: "discharging", Percentage: 73}},
		{"not charging", "80\n", "Not charging\n", models.PowerEvent{Status: "not charging", Percentage: 80}},
		{"full", "100\n", "Full\n", models.PowerEvent{Status: "full", Percentage: 100}},
		{"missing status", "50\n", "", models.PowerEvent{Status: "unknown", Percentage: 50}},
		{"odd status", "50\n", "Weird\n", models.PowerEvent{Status: "unknown", Percentage: 50}},
		{"over range", "104\n", "Charging\n", models.PowerEvent{Status: "charging", Percentage: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeBattery(t, root, "BAT0", tt.capacity, tt.status)

			got, err := NewPowerCollectorAt(root).Sample(context.Background())
			if err != nil {
				t.Fatalf("Sample() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Sample() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPowerCollector_PicksFirstBattery(t *testing.T) {
	root := t.TempDir()
	writeBattery(t, root, "BAT1", "10", "Charging")
	writeBattery(t, root, "BAT0", "90", "Discharging")

	got, err := NewPowerCollectorAt(root).Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if got.Percentage != 90 {
		t.Errorf("Percentage = %v, want 90 from BAT0", got.Percentage)
	}
}

func TestPowerCollector_NoBattery(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "AC"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := NewPowerCollectorAt(root).Sample(context.Background())
	var se *SamplingError
	if !errors.As(err, &se) {
		t.Fatalf("Sample() error = %v, want *SamplingError", err)
	}
	if !errors.Is(err, ErrNoBattery) {
		t.Errorf("Sample() error = %v, want ErrNoBattery", err)
	}
}

func TestPowerCollector_BadCapacity(t *testing.T) {
	root := t.TempDir()
	writeBattery(t, root, "BAT0", "lots", "Full")

	_, err := NewPowerCollectorAt(root).Sample(context.Background())
	var se *SamplingError
	if !errors.As(err, &se) {
		t.Errorf("Sample() error = %v, want *SamplingError", err)
	}
}
