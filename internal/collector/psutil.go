package collector

import (
	"context"
	"errors"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/prabalesh/hostbus/internal/models"
)

// PSUtilCollector samples through gopsutil, which covers the platforms
// without procfs.
type PSUtilCollector struct {
	settle time.Duration
}

func NewPSUtilCollector() *PSUtilCollector {
	return &PSUtilCollector{settle: DefaultSettle}
}

func (c *PSUtilCollector) Sample(ctx context.Context) (models.HostMetricsEvent, error) {
	percents, err := cpu.PercentWithContext(ctx, c.settle, false)
	if err != nil {
		return models.HostMetricsEvent{}, &SamplingError{Source: SourceGopsutil, Err: err}
	}
	if len(percents) == 0 {
		return models.HostMetricsEvent{}, &SamplingError{Source: SourceGopsutil, Err: errors.New("no cpu reading")}
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.HostMetricsEvent{}, &SamplingError{Source: SourceGopsutil, Err: err}
	}

	return models.NewHostMetrics(percents[0], vm.Total, vm.Available), nil
}
