package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/prabalesh/hostbus/internal/models"
	"github.com/prabalesh/hostbus/internal/subscriber"
)

var (
	subscribeKind string
	subscribeJSON bool
)

// subscribeCmd prints every received event.
var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Print notifications as they arrive",
	Long: `Subscribe to one channel of the configured service and print every event
until interrupted. Events emitted before the subscription starts are not
replayed.

Examples:
  hostbus subscribe
  hostbus subscribe --kind power
  hostbus subscribe --json | jq .cpu_usage`,
	RunE: runSubscribe,
}

func init() {
	subscribeCmd.Flags().StringVar(&subscribeKind, "kind", string(models.KindHostMetrics), "event kind: host_metrics or power")
	subscribeCmd.Flags().BoolVar(&subscribeJSON, "json", false, "print one JSON object per line")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	kind, err := models.ParseKind(subscribeKind)
	if err != nil {
		return err
	}
	binding, err := bindingFor(cfg, kind)
	if err != nil {
		return err
	}

	conn, err := dialBus(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sub, err := subscriber.NewClient(conn, cfg.Bus.Service).Subscribe(ctx, kind, binding)
	if err != nil {
		return err
	}
	defer sub.Close()

	log.Info().Str("binding", binding.String()).Msg("listening")

	err = subscriber.Consume(ctx, sub, eventPrinter(os.Stdout, subscribeJSON))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// eventPrinter writes each event as a text line or a JSON object.
func eventPrinter(w io.Writer, asJSON bool) subscriber.Handler {
	enc := json.NewEncoder(w)
	return func(ev models.Event) error {
		if asJSON {
			return enc.Encode(ev)
		}
		_, err := fmt.Fprintf(w, "%s %s\n", time.Now().Format(time.TimeOnly), formatEvent(ev))
		return err
	}
}

func formatEvent(ev models.Event) string {
	switch e := ev.(type) {
	case models.HostMetricsEvent:
		return fmt.Sprintf("host_metrics cpu=%.1f%% total=%d available=%d used=%.1f%%",
			e.CPUUsage, e.TotalMemory, e.AvailableMemory, e.MemoryPercent())
	case models.PowerEvent:
		return fmt.Sprintf("power status=%s percentage=%.0f%%", e.Status, e.Percentage)
	}
	return fmt.Sprintf("%s %v", ev.Kind(), ev.Payload())
}
