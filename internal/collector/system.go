package collector

import (
	"context"
	"path/filepath"
	"time"

	"github.com/prabalesh/hostbus/internal/clock"
	"github.com/prabalesh/hostbus/internal/models"
)

// ProcCollector reads CPU and memory accounting straight from procfs.
type ProcCollector struct {
	procRoot string
	settle   time.Duration
	clock    clock.Clock
}

type ProcOption func(*ProcCollector)

// WithProcRoot points the collector at a different procfs mount.
func WithProcRoot(root string) ProcOption {
	return func(c *ProcCollector) { c.procRoot = root }
}

func WithSettle(d time.Duration) ProcOption {
	return func(c *ProcCollector) { c.settle = d }
}

func WithClock(clk clock.Clock) ProcOption {
	return func(c *ProcCollector) { c.clock = clk }
}

func NewProcCollector(opts ...ProcOption) *ProcCollector {
	c := &ProcCollector{
		procRoot: "/proc",
		settle:   DefaultSettle,
		clock:    clock.Real(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sample refreshes CPU accounting twice across the settle gap, then reads
// memory.
func (c *ProcCollector) Sample(ctx context.Context) (models.HostMetricsEvent, error) {
	statPath := filepath.Join(c.procRoot, "stat")

	before, err := readCPUTimes(statPath)
	if err != nil {
		return models.HostMetricsEvent{}, &SamplingError{Source: SourceProcfs, Err: err}
	}

	select {
	case <-ctx.Done():
		return models.HostMetricsEvent{}, &SamplingError{Source: SourceProcfs, Err: ctx.Err()}
	case <-c.clock.After(c.settle):
	}

	after, err := readCPUTimes(statPath)
	if err != nil {
		return models.HostMetricsEvent{}, &SamplingError{Source: SourceProcfs, Err: err}
	}

	total, available, err := readMemInfo(filepath.Join(c.procRoot, "meminfo"))
	if err != nil {
		return models.HostMetricsEvent{}, &SamplingError{Source: SourceProcfs, Err: err}
	}

	return models.NewHostMetrics(cpuPercent(before, after), total, available), nil
}
