// Command weather is an interactive terminal client for weatherd.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cameronmore/go-weather/cli"
	"github.com/cameronmore/go-weather/client"
	"github.com/cameronmore/go-weather/config"
)

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "weather: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "weather: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.ClientConfig) error {
	api, err := client.NewAPI(cfg.ServerURL, nil)
	if err != nil {
		return err
	}
	if _, err := api.Health(ctx); err != nil {
		return fmt.Errorf("server %s is not reachable: %w", cfg.ServerURL, err)
	}
	return cli.New(client.NewApp(api), os.Stdin, os.Stdout).Run(ctx)
}
