package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/collector"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateBus(&cfg.Bus); err != nil {
		return err
	}
	if err := validateMetrics(&cfg.Metrics); err != nil {
		return err
	}
	if err := validatePower(&cfg.Power); err != nil {
		return err
	}
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}
	if !cfg.Metrics.Enabled && !cfg.Power.Enabled {
		return fmt.Errorf("at least one of metrics.enabled and power.enabled must be true")
	}
	if cfg.Metrics.Enabled && cfg.Power.Enabled && cfg.MetricsBinding() == cfg.PowerBinding() {
		return fmt.Errorf("metrics and power cannot share the binding %s", cfg.MetricsBinding())
	}
	return nil
}

func validateBus(cfg *BusConfig) error {
	switch bus.Scope(cfg.Scope) {
	case bus.ScopeSession, bus.ScopeSystem:
	default:
		return fmt.Errorf("bus.scope must be session or system, got %q", cfg.Scope)
	}
	if err := bus.ValidateName(cfg.Service); err != nil {
		return fmt.Errorf("bus.service: %w", err)
	}
	if err := bus.ValidatePath(cfg.Path); err != nil {
		return fmt.Errorf("bus.path: %w", err)
	}
	if err := bus.ValidateInterface(cfg.Interface); err != nil {
		return fmt.Errorf("bus.interface: %w", err)
	}
	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if err := bus.ValidateMember(cfg.Member); err != nil {
		return fmt.Errorf("metrics.member: %w", err)
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("metrics.interval must be positive")
	}
	if cfg.Settle < 0 {
		return fmt.Errorf("metrics.settle cannot be negative")
	}
	switch cfg.Source {
	case collector.SourceAuto, collector.SourceProcfs, collector.SourceGopsutil:
	default:
		return fmt.Errorf("metrics.source must be auto, procfs or gopsutil, got %q", cfg.Source)
	}
	return nil
}

func validatePower(cfg *PowerConfig) error {
	if err := bus.ValidatePath(cfg.Path); err != nil {
		return fmt.Errorf("power.path: %w", err)
	}
	if err := bus.ValidateInterface(cfg.Interface); err != nil {
		return fmt.Errorf("power.interface: %w", err)
	}
	if err := bus.ValidateMember(cfg.Member); err != nil {
		return fmt.Errorf("power.member: %w", err)
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("power.interval must be positive")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	if _, err := zerolog.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch cfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", cfg.Format)
	}
	return nil
}
