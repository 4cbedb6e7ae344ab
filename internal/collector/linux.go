//go:build linux

package collector

import "time"

func defaultSource(settle time.Duration) MetricsSource {
	return NewProcCollector(WithSettle(settle))
}
