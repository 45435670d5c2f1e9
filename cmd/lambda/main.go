// Package main is the entry point for the OpenAI Lambda function.
package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"
	"github.com/lpm0073/openai-lambda/internal/config"
	"github.com/lpm0073/openai-lambda/internal/handler"
	"github.com/lpm0073/openai-lambda/internal/logging"
	"github.com/lpm0073/openai-lambda/internal/metrics"
	"github.com/lpm0073/openai-lambda/internal/router"
	"github.com/lpm0073/openai-lambda/internal/upstream"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.DebugMode,
		zap.String("environment", cfg.Environment),
		zap.String("function_name", cfg.FunctionName),
	)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	instance := cfg.Metrics.Instance
	if instance == "" {
		instance = uuid.NewString()
	}
	exporter := metrics.NewExporter(metrics.Registry,
		cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, instance, logger)

	r := router.New(upstream.New(cfg.OpenAI), cfg.OpenAI)
	fn := &function{
		handler: handler.New(cfg, r, logger).WithExporter(exporter),
		warmer:  newWarmer(cfg.FunctionName, logger),
		batch:   cfg.BatchRecords,
	}

	lambda.Start(fn.handleRequest)
}

type function struct {
	handler *handler.Handler
	warmer  *warmer
	// batch answers every record with its own envelope.
	batch bool
}

func (f *function) handleRequest(ctx context.Context, event json.RawMessage) (interface{}, error) {
	// Warmup detection (MUST be first - before any other processing)
	if warmup, ok := IsWarmupEvent(event); ok {
		return f.warmer.Handle(ctx, warmup)
	}

	if f.batch {
		return f.handler.HandleRawBatch(ctx, event), nil
	}
	return f.handler.HandleRaw(ctx, event), nil
}
