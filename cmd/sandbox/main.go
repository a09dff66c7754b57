// Command sandbox serves the in-memory orders API used by the shop when provider.url
// points at it.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/config"
	"github.com/kbsmaine/boilerparts/provider"
	"github.com/kbsmaine/boilerparts/sandbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "sandbox",
		Usage: "serve the in-memory orders API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a config file",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides sandbox.addr",
			},
			&cli.StringFlag{
				Name:  "payer",
				Usage: "given name reported on captures",
			},
		},
		Action: serve,
	}
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.Sandbox.Addr = addr
	}
	if payer := cmd.String("payer"); payer != "" {
		cfg.Provider.Payer = payer
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	backend := provider.NewMemoryBackend(
		provider.WithPayerName(cfg.Provider.Payer),
		provider.WithMemoryLogger(logger.Named("backend")),
	)
	server := sandbox.NewServer(backend,
		sandbox.WithReplayCache(sandbox.NewReplayCache(cfg.Sandbox.ReplayTTL)),
		sandbox.WithLogger(logger.Named("http")),
	)

	srv := &http.Server{
		Addr:              cfg.Sandbox.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sandbox listening", zap.String("addr", cfg.Sandbox.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("failed to serve", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down sandbox")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
