// Package config handles configuration management for hostbus.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/prabalesh/hostbus/internal/bus"
)

// Config holds all configuration for the application.
type Config struct {
	Bus     BusConfig     `mapstructure:"bus" yaml:"bus"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Power   PowerConfig   `mapstructure:"power" yaml:"power"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// BusConfig locates the service on the bus.
type BusConfig struct {
	Scope     string `mapstructure:"scope" yaml:"scope"` // session or system
	Service   string `mapstructure:"service" yaml:"service"`
	Path      string `mapstructure:"path" yaml:"path"`
	Interface string `mapstructure:"interface" yaml:"interface"`
}

// MetricsConfig holds the host metrics channel.
type MetricsConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Member   string        `mapstructure:"member" yaml:"member"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Source   string        `mapstructure:"source" yaml:"source"` // auto, procfs or gopsutil
	Settle   time.Duration `mapstructure:"settle" yaml:"settle"`
}

// PowerConfig holds the battery channel. Path and Interface default to
// the bus object; the services layout moves them to their own object.
type PowerConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	Path      string        `mapstructure:"path" yaml:"path"`
	Interface string        `mapstructure:"interface" yaml:"interface"`
	Member    string        `mapstructure:"member" yaml:"member"`
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hostbus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.hostbus")
		v.AddConfigPath("/etc/hostbus")
	}

	v.SetEnvPrefix("HOSTBUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - not an error if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	postProcess(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{
		Bus: BusConfig{
			Scope:     DefaultScope,
			Service:   DefaultService,
			Path:      DefaultPath,
			Interface: DefaultInterface,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Member:   DefaultMetricsMember,
			Interval: DefaultMetricsInterval,
			Source:   "auto",
			Settle:   DefaultSettle,
		},
		Power: PowerConfig{
			Member:   DefaultPowerMember,
			Interval: DefaultPowerInterval,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
	postProcess(cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("bus.scope", d.Bus.Scope)
	v.SetDefault("bus.service", d.Bus.Service)
	v.SetDefault("bus.path", d.Bus.Path)
	v.SetDefault("bus.interface", d.Bus.Interface)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.member", d.Metrics.Member)
	v.SetDefault("metrics.interval", d.Metrics.Interval)
	v.SetDefault("metrics.source", d.Metrics.Source)
	v.SetDefault("metrics.settle", d.Metrics.Settle)

	// Empty power path and interface follow the bus object.
	v.SetDefault("power.enabled", false)
	v.SetDefault("power.path", "")
	v.SetDefault("power.interface", "")
	v.SetDefault("power.member", d.Power.Member)
	v.SetDefault("power.interval", d.Power.Interval)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

func postProcess(cfg *Config) {
	if cfg.Power.Path == "" {
		cfg.Power.Path = cfg.Bus.Path
	}
	if cfg.Power.Interface == "" {
		cfg.Power.Interface = cfg.Bus.Interface
	}
}

// MetricsBinding is where host metrics are emitted.
func (c *Config) MetricsBinding() bus.Binding {
	return bus.Binding{Path: c.Bus.Path, Interface: c.Bus.Interface, Member: c.Metrics.Member}
}

// PowerBinding is where battery notifications are emitted.
func (c *Config) PowerBinding() bus.Binding {
	return bus.Binding{Path: c.Power.Path, Interface: c.Power.Interface, Member: c.Power.Member}
}

// MethodBinding addresses a method on the bus object.
func (c *Config) MethodBinding(method string) bus.Binding {
	return bus.Binding{Path: c.Bus.Path, Interface: c.Bus.Interface, Member: method}
}
