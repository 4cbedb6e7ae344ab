package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/prabalesh/hostbus/internal/bus/memory"
	"github.com/prabalesh/hostbus/internal/clock"
	"github.com/prabalesh/hostbus/internal/config"
	"github.com/prabalesh/hostbus/internal/models"
	"github.com/prabalesh/hostbus/internal/publisher"
	"github.com/prabalesh/hostbus/internal/subscriber"
)

var (
	demoInterval time.Duration
	demoCount    int
)

var errDemoDone = errors.New("demo finished")

// demoCmd runs both roles against an in-process bus.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a publisher and a subscriber in one process",
	Long: `Start a publisher and a subscriber on an in-process bus, greet the
publisher, and print the first events. No D-Bus daemon is needed.

Examples:
  hostbus demo                    # three events, one second apart
  hostbus demo --count 0          # until interrupted`,
	RunE: runDemo,
}

func init() {
	demoCmd.Flags().DurationVar(&demoInterval, "interval", time.Second, "host metrics interval")
	demoCmd.Flags().IntVar(&demoCount, "count", 3, "events to print before exiting, 0 for no limit")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Metrics.Enabled = true
	cfg.Metrics.Interval = demoInterval
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg)

	ctx, cancel := signalContext()
	defer cancel()

	err = runDemoSession(ctx, cfg, os.Stdout, demoCount)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runDemoSession subscribes before the publisher starts so the first,
// immediate tick is seen.
func runDemoSession(ctx context.Context, cfg *config.Config, w io.Writer, count int) error {
	b := memory.New()
	pubConn := b.Connect()
	defer pubConn.Close()
	subConn := b.Connect()
	defer subConn.Close()

	pub, err := newPublisher(pubConn, cfg, clock.Real())
	if err != nil {
		return err
	}
	client := subscriber.NewClient(subConn, cfg.Bus.Service)

	sub, err := client.Subscribe(ctx, models.KindHostMetrics, cfg.MetricsBinding())
	if err != nil {
		return err
	}
	defer sub.Close()

	if _, err := pub.Register(); err != nil {
		return err
	}
	reply, err := client.Greet(ctx, cfg.MethodBinding(publisher.MethodSayHello), "hostbus")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, reply)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return pub.Run(gctx)
	})
	g.Go(func() error {
		defer stop()
		printEvent := eventPrinter(w, false)
		n := 0
		err := subscriber.Consume(gctx, sub, func(ev models.Event) error {
			if err := printEvent(ev); err != nil {
				return err
			}
			n++
			if count > 0 && n >= count {
				return errDemoDone
			}
			return nil
		})
		if errors.Is(err, errDemoDone) || errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	return g.Wait()
}
