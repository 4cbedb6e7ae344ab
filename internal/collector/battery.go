package collector

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/prabalesh/hostbus/internal/models"
)

// PowerCollector reads the first battery under /sys/class/power_supply.
type PowerCollector struct {
	supplyRoot string
}

func NewPowerCollector() *PowerCollector {
	return &PowerCollector{supplyRoot: "/sys/class/power_supply"}
}

// NewPowerCollectorAt reads batteries below root instead of sysfs.
func NewPowerCollectorAt(root string) *PowerCollector {
	return &PowerCollector{supplyRoot: root}
}

func (c *PowerCollector) Sample(ctx context.Context) (models.PowerEvent, error) {
	if err := ctx.Err(); err != nil {
		return models.PowerEvent{}, &SamplingError{Source: "battery", Err: err}
	}

	batteryDirs, err := filepath.Glob(filepath.Join(c.supplyRoot, "BAT*"))
	if err != nil || len(batteryDirs) == 0 {
		// Desktops and VMs have no battery.
		return models.PowerEvent{}, &SamplingError{Source: "battery", Err: ErrNoBattery}
	}
	sort.Strings(batteryDirs)
	batteryDir := batteryDirs[0]

	level, err := readBatteryInt(filepath.Join(batteryDir, "capacity"))
	if err != nil {
		return models.PowerEvent{}, &SamplingError{Source: "battery", Err: err}
	}
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}

	return models.PowerEvent{
		Status:     normalizeStatus(readBatteryString(filepath.Join(batteryDir, "status"))),
		Percentage: float32(level),
	}, nil
}

func readBatteryInt(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(content)))
}

func readBatteryString(path string) string {
	if content, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(content))
	}
	return "Unknown"
}

// normalizeStatus maps sysfs values ("Charging", "Not charging") to the
// lower case status strings carried on the bus.
func normalizeStatus(status string) string {
	switch s := strings.ToLower(strings.TrimSpace(status)); s {
	case "charging", "discharging", "full", "not charging":
		return s
	default:
		return "unknown"
	}
}
