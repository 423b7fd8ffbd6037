package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"orderflow/cmd"
	"orderflow/internal/adapters/observability"

	"github.com/labstack/gommon/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configs, err := cmd.LoadConfig()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	obs, shutdownTelemetry, err := observability.Init(ctx, configs.ServiceName)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	app, err := cmd.NewCompositionRoot(ctx, configs, obs)
	if err != nil {
		log.Fatalf("composition root: %v", err)
	}

	if err = startWebServer(ctx, app, configs.HTTPPort); err != nil {
		obs.Logger.Error("server stopped", "error", err)
	}

	app.Close()
	flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = shutdownTelemetry(flushCtx); err != nil {
		obs.Logger.Warn("telemetry shutdown", "error", err)
	}
}

// startWebServer serves until ctx is cancelled, then drains in-flight requests.
func startWebServer(ctx context.Context, app *cmd.CompositionRoot, port string) error {
	e, err := app.CreateEcho(ctx)
	if err != nil {
		return err
	}
	if err = app.Start(); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- e.Start(fmt.Sprintf("0.0.0.0:%s", port))
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
