// Package main contains the Lambda warmup handler for preventing cold starts.
// CloudWatch Events trigger this handler periodically to keep Lambda instances warm.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"go.uber.org/zap"
)

const (
	// WarmupSource identifies warmup events from CloudWatch
	WarmupSource = "warmup"

	// WarmupDelay ensures instances overlap to create true concurrency
	WarmupDelay = 75 * time.Millisecond

	// maxWarmupConcurrency caps self-invocations per warmup event.
	maxWarmupConcurrency = 50
)

// WarmupEvent represents the CloudWatch Event payload for warmup
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse is the response returned by warmup operations
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// invoker is the part of the Lambda API used for self-invocation.
type invoker interface {
	Invoke(ctx context.Context, params *lambdasdk.InvokeInput, optFns ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error)
}

// warmer keeps instances of this function warm.
type warmer struct {
	functionName string
	logger       *zap.Logger
	delay        time.Duration

	// newClient is resolved lazily so cold starts that never see a
	// warmup event skip AWS config loading.
	newClient func(ctx context.Context) (invoker, error)
}

func newWarmer(functionName string, logger *zap.Logger) *warmer {
	return &warmer{
		functionName: functionName,
		logger:       logger,
		delay:        WarmupDelay,
		newClient: func(ctx context.Context) (invoker, error) {
			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to load AWS config: %w", err)
			}
			return lambdasdk.NewFromConfig(cfg), nil
		},
	}
}

// IsWarmupEvent checks if the event is a warmup event
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var peek struct {
		Source      *string  `json:"source"`
		Concurrency *float64 `json:"concurrency"`
	}
	if err := json.Unmarshal(event, &peek); err != nil {
		return nil, false
	}
	if peek.Source == nil || *peek.Source != WarmupSource {
		return nil, false
	}

	warmup := &WarmupEvent{Source: WarmupSource}
	if peek.Concurrency != nil && *peek.Concurrency > 0 {
		warmup.Concurrency = int(*peek.Concurrency)
	}
	return warmup, true
}

// Handle processes a warmup event and optionally self-invokes
// to maintain multiple warm instances.
func (w *warmer) Handle(ctx context.Context, warmup *WarmupEvent) (interface{}, error) {
	instancesWarmed := 1 // This instance counts as 1

	concurrency := warmup.Concurrency
	if concurrency > maxWarmupConcurrency {
		concurrency = maxWarmupConcurrency
	}

	if concurrency > 0 {
		invoked, err := w.selfInvoke(ctx, concurrency)
		if err != nil {
			w.logger.Warn("warmup self-invocation failed",
				zap.Error(err),
				zap.Int("requested", concurrency),
				zap.Int("invoked", invoked),
			)
		}
		instancesWarmed += invoked
	}

	// Brief delay to ensure instances overlap
	time.Sleep(w.delay)

	w.logger.Debug("warmup complete", zap.Int("instances_warmed", instancesWarmed))

	return map[string]interface{}{
		"statusCode": http.StatusOK,
		"body": WarmupResponse{
			Status:          "warm",
			InstancesWarmed: instancesWarmed,
		},
	}, nil
}

// selfInvoke invokes this function count times asynchronously and reports
// how many invocations were accepted.
func (w *warmer) selfInvoke(ctx context.Context, count int) (int, error) {
	if w.functionName == "" {
		return 0, errors.New("AWS_LAMBDA_FUNCTION_NAME is not set")
	}

	client, err := w.newClient(ctx)
	if err != nil {
		return 0, err
	}

	// Payload for child invocations (concurrency=0 to prevent infinite loop)
	payload, err := json.Marshal(WarmupEvent{
		Source:      WarmupSource,
		Concurrency: 0, // Critical: prevent recursive invocation
	})
	if err != nil {
		return 0, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		errs     []error
	)

	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := client.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(w.functionName),
				InvocationType: types.InvocationTypeEvent, // Async invocation
				Payload:        payload,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			accepted++
		}()
	}

	wg.Wait()
	return accepted, errors.Join(errs...)
}
