package cmd

import (
	"fmt"

	"github.com/prabalesh/hostbus/internal/bus"
	"github.com/prabalesh/hostbus/internal/bus/dbus"
	"github.com/prabalesh/hostbus/internal/clock"
	"github.com/prabalesh/hostbus/internal/collector"
	"github.com/prabalesh/hostbus/internal/config"
	"github.com/prabalesh/hostbus/internal/models"
	"github.com/prabalesh/hostbus/internal/publisher"
)

func dialBus(cfg *config.Config) (bus.Conn, error) {
	conn, err := dbus.Dial(bus.Scope(cfg.Bus.Scope))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// newPublisher wires the enabled channels of cfg to their collectors.
func newPublisher(conn bus.Conn, cfg *config.Config, clk clock.Clock) (*publisher.Publisher, error) {
	var channels []publisher.Channel

	if cfg.Metrics.Enabled {
		src, err := collector.New(cfg.Metrics.Source, cfg.Metrics.Settle)
		if err != nil {
			return nil, err
		}
		channels = append(channels, publisher.MetricsChannel(cfg.MetricsBinding(), cfg.Metrics.Interval, src))
	}
	if cfg.Power.Enabled {
		channels = append(channels, publisher.PowerChannel(cfg.PowerBinding(), cfg.Power.Interval, collector.NewPowerCollector()))
	}

	return publisher.New(conn, publisher.Options{
		Service:   cfg.Bus.Service,
		Path:      cfg.Bus.Path,
		Interface: cfg.Bus.Interface,
		Channels:  channels,
		Clock:     clk,
	})
}

// bindingFor returns where events of kind are emitted under cfg.
func bindingFor(cfg *config.Config, kind models.Kind) (bus.Binding, error) {
	switch kind {
	case models.KindHostMetrics:
		return cfg.MetricsBinding(), nil
	case models.KindPower:
		return cfg.PowerBinding(), nil
	}
	return bus.Binding{}, fmt.Errorf("no channel emits %s events", kind)
}
