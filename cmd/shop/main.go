// Command shop drives the cart widget from a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/config"
	"github.com/kbsmaine/boilerparts/widget"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "shop",
		Usage: "interactive cart and checkout shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a config file",
			},
			&cli.StringFlag{
				Name:  "provider-url",
				Usage: "orders API base URL, overrides provider.url",
			},
			&cli.StringFlag{
				Name:  "storage-dir",
				Usage: "directory the cart is persisted in, overrides storage.dir",
			},
		},
		Action: shop,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func shop(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if url := cmd.String("provider-url"); url != "" {
		cfg.Provider.URL = url
	}
	if dir := cmd.String("storage-dir"); dir != "" {
		cfg.Storage.Dir = dir
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	w, err := widget.New(cfg, widget.WithLogger(logger))
	if err != nil {
		logger.Error("failed to start widget", zap.Error(err))
		return err
	}
	defer w.Shutdown()

	logger.Debug("shop started",
		zap.String("provider_url", cfg.Provider.URL),
		zap.String("storage_dir", cfg.Storage.Dir))
	return runShell(ctx, w, os.Stdin, os.Stdout)
}
