package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"oneinbox/handler"
	"oneinbox/internal/app"
	"oneinbox/internal/config"
	"oneinbox/internal/integrations/gateway"
	"oneinbox/internal/integrations/paramstore"
	"oneinbox/internal/repository"
	"oneinbox/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	loadTimeout := envInt("CONFIG_TIMEOUT_SECONDS", 5)

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	archive, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), stateTable)
	if err != nil {
		slog.Error("failed to create archive client", "err", err)
		os.Exit(1)
	}

	loadCtx, cancel := context.WithTimeout(ctx, time.Duration(loadTimeout)*time.Second)
	cfg, err := config.LoadParam(loadCtx, ssmClient, paramPrefix+"/inbox-config")
	cancel()
	if err != nil {
		slog.Error("failed to load inbox config", "err", err)
		os.Exit(1)
	}

	opts := []usecase.InboxOption{usecase.WithArchiver(archive)}
	if cfg.Gateway.BaseURL != "" {
		gw, err := gateway.NewClient(ssmClient, cfg.Gateway.BaseURL, cfg.Gateway.TokenParam,
			gateway.WithTimeout(time.Duration(cfg.Gateway.TimeoutSeconds)*time.Second))
		if err != nil {
			slog.Error("failed to create gateway client", "err", err)
			os.Exit(1)
		}
		opts = append(opts, usecase.WithDeliverer(gw))
	}

	// ---- Handler ----
	inboxApp, err := app.Build(cfg, slog.Default(), opts...)
	if err != nil {
		slog.Error("failed to build inbox", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(inboxApp.Service)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
