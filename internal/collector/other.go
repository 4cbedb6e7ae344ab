//go:build !linux

package collector

import "time"

// Without procfs, fall back to gopsutil.
func defaultSource(settle time.Duration) MetricsSource {
	return &PSUtilCollector{settle: settle}
}
