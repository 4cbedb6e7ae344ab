package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/prabalesh/hostbus/internal/clock"
	"github.com/prabalesh/hostbus/internal/config"
)

var (
	publishInterval time.Duration
	publishSource   string
	publishPower    bool
)

// publishCmd runs the notification publisher.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Claim the service name and broadcast host metrics",
	Long: `Claim the configured well-known name, serve the greeter object and emit a
host_metrics signal on every tick. The first tick fires immediately.

Examples:
  hostbus publish                     # every 15s on the session bus
  hostbus publish --interval 1s
  hostbus publish --power             # also emit battery notifications
  hostbus publish --scope system --source gopsutil`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().DurationVar(&publishInterval, "interval", 0, "host metrics interval (default from config, 15s)")
	publishCmd.Flags().StringVar(&publishSource, "source", "", "metrics source: auto, procfs or gopsutil")
	publishCmd.Flags().BoolVar(&publishPower, "power", false, "also emit battery notifications")
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if publishInterval != 0 {
		cfg.Metrics.Interval = publishInterval
	}
	if publishSource != "" {
		cfg.Metrics.Source = publishSource
	}
	if publishPower {
		cfg.Power.Enabled = true
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	conn, err := dialBus(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	pub, err := newPublisher(conn, cfg, clock.Real())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	log.Info().
		Str("version", version).
		Str("scope", cfg.Bus.Scope).
		Str("service", cfg.Bus.Service).
		Dur("interval", cfg.Metrics.Interval).
		Bool("power", cfg.Power.Enabled).
		Msg("starting publisher")

	if err := pub.Run(ctx); err != nil {
		return err
	}

	log.Info().Msg("publisher stopped")
	return nil
}
