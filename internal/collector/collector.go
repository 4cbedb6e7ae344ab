package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prabalesh/hostbus/internal/models"
)

// DefaultSettle is the gap between the two CPU accounting reads of one
// sample. Usage is the busy share of that gap.
const DefaultSettle = 250 * time.Millisecond

// Source names accepted by New.
const (
	SourceAuto     = "auto"
	SourceProcfs   = "procfs"
	SourceGopsutil = "gopsutil"
)

var ErrNoBattery = errors.New("no battery found")

// MetricsSource produces a fresh host reading on every call. Nothing is
// cached between calls, and each call costs at least the settle gap, so
// callers should drive it from a ticker rather than a tight loop.
type MetricsSource interface {
	Sample(ctx context.Context) (models.HostMetricsEvent, error)
}

// SamplingError wraps an OS query failure for one sample.
type SamplingError struct {
	Source string
	Err    error
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("sample %s: %v", e.Source, e.Err)
}

func (e *SamplingError) Unwrap() error {
	return e.Err
}

// New returns the metrics source registered under name. A non-positive
// settle keeps DefaultSettle.
func New(name string, settle time.Duration) (MetricsSource, error) {
	if settle <= 0 {
		settle = DefaultSettle
	}
	switch name {
	case SourceAuto, "":
		return defaultSource(settle), nil
	case SourceProcfs:
		return NewProcCollector(WithSettle(settle)), nil
	case SourceGopsutil:
		return &PSUtilCollector{settle: settle}, nil
	}
	return nil, fmt.Errorf("unknown metrics source %q", name)
}
