package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prabalesh/hostbus/internal/publisher"
	"github.com/prabalesh/hostbus/internal/subscriber"
)

var greetTimeout time.Duration

// greetCmd calls SayHello on a running publisher.
var greetCmd = &cobra.Command{
	Use:   "greet [name]",
	Short: "Call SayHello on a running publisher",
	Long: `Call the greeter method served next to the signals and print the reply.

Examples:
  hostbus greet Alice    # prints "Hello Alice!"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGreet,
}

func init() {
	greetCmd.Flags().DurationVar(&greetTimeout, "timeout", 5*time.Second, "how long to wait for the reply")
}

func runGreet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	name := "World"
	if len(args) > 0 {
		name = args[0]
	}

	conn, err := dialBus(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), greetTimeout)
	defer cancel()

	reply, err := subscriber.NewClient(conn, cfg.Bus.Service).Greet(ctx, cfg.MethodBinding(publisher.MethodSayHello), name)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}
