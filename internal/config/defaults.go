package config

import "time"

const (
	DefaultScope     = "session"
	DefaultService   = "org.mechanix.MyGreeter"
	DefaultPath      = "/org/mechanix/MyGreeter"
	DefaultInterface = "org.mechanix.MyGreeter"

	DefaultMetricsMember   = "host_metrics"
	DefaultMetricsInterval = 15 * time.Second
	DefaultSettle          = 250 * time.Millisecond

	DefaultPowerMember   = "notification"
	DefaultPowerInterval = 30 * time.Second
)
