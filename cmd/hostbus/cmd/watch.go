package cmd

import (
	"github.com/spf13/cobra"

	"github.com/prabalesh/hostbus/internal/models"
	"github.com/prabalesh/hostbus/internal/subscriber"
	"github.com/prabalesh/hostbus/internal/ui"
)

var watchPower bool

// watchCmd renders notifications in a terminal view.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show live notifications in a terminal view",
	Long: `Subscribe to the configured service and render the latest host metrics,
battery state and a scrolling event history.

Examples:
  hostbus watch
  hostbus watch --power`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchPower, "power", false, "also subscribe to battery notifications")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchPower {
		cfg.Power.Enabled = true
	}

	// The view owns the terminal; keep logs at errors only.
	cfg.Logging.Level = "error"
	setupLogging(cfg)

	conn, err := dialBus(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := signalContext()
	defer cancel()

	client := subscriber.NewClient(conn, cfg.Bus.Service)
	var feeds []ui.Feed

	if cfg.Metrics.Enabled {
		sub, err := client.Subscribe(ctx, models.KindHostMetrics, cfg.MetricsBinding())
		if err != nil {
			return err
		}
		defer sub.Close()
		feeds = append(feeds, sub)
	}
	if cfg.Power.Enabled {
		sub, err := client.Subscribe(ctx, models.KindPower, cfg.PowerBinding())
		if err != nil {
			return err
		}
		defer sub.Close()
		feeds = append(feeds, sub)
	}

	return ui.Run(ctx, cfg.Bus.Service, feeds...)
}
