package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"

	"oneinbox/handler"
	"oneinbox/internal/app"
	"oneinbox/internal/config"
	"oneinbox/internal/integrations/gateway"
	"oneinbox/internal/integrations/paramstore"
	"oneinbox/internal/mqtt"
	"oneinbox/internal/repository"
	"oneinbox/internal/simulator"
	"oneinbox/internal/usecase"
)

func newServeCmd(load configLoader) *cobra.Command {
	var (
		addr     string
		schedule string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inbox HTTP API",
		Long:  "Serves the inbox API. Depending on the config it also archives turns to SQLite, bridges MQTT topics, delivers replies to the platform gateway and simulates traffic on a schedule.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if schedule != "" {
				cfg.Simulator.Schedule = schedule
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, slog.Default())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&schedule, "simulate-schedule", "", `cron spec for demo traffic, e.g. "@every 5s" (overrides simulator.schedule)`)
	return cmd
}

// components holds the optional side channels selected by the config.
type components struct {
	opts    []usecase.InboxOption
	bridge  *mqtt.Bridge
	closers []func() error
}

func (c *components) Close() {
	for _, fn := range c.closers {
		_ = fn()
	}
}

func buildComponents(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*components, error) {
	c := &components{}

	if path := cfg.Archive.SQLitePath; path != "" {
		archive, err := repository.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		c.opts = append(c.opts, usecase.WithArchiver(archive))
		c.closers = append(c.closers, archive.Close)
	}

	if cfg.Gateway.BaseURL != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			c.Close()
			return nil, err
		}
		gw, err := gateway.NewClient(params, cfg.Gateway.BaseURL, cfg.Gateway.TokenParam,
			gateway.WithTimeout(time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.opts = append(c.opts, usecase.WithDeliverer(gw))
	}

	if cfg.MQTT.Broker != "" {
		bridge, err := mqtt.NewBridge(mqtt.BridgeConfig{
			BrokerURL:   cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.bridge = bridge
		c.opts = append(c.opts, usecase.WithDeliverer(bridge))
	}

	return c, nil
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	comps, err := buildComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comps.Close()

	inboxApp, err := app.Build(cfg, logger, comps.opts...)
	if err != nil {
		return err
	}

	if comps.bridge != nil {
		if err := comps.bridge.Start(ctx, inboxApp.Service); err != nil {
			return fmt.Errorf("start mqtt bridge: %w", err)
		}
	}

	runner, err := inboxApp.Scheduler()
	if err != nil {
		return err
	}
	stopScheduler := startScheduler(ctx, runner)
	// Runs before comps.Close so no scheduled turn writes to a closed archive.
	defer stopScheduler()

	h, err := handler.NewHandler(inboxApp.Service)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("oneinbox server started", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// startScheduler runs runner in the background. The returned func cancels
// it and blocks until an in-flight job has returned.
func startScheduler(ctx context.Context, runner *simulator.Runner) (stop func()) {
	if runner == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runner.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
