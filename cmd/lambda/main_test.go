package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/lpm0073/openai-lambda/internal/config"
	"github.com/lpm0073/openai-lambda/internal/domain"
	"github.com/lpm0073/openai-lambda/internal/handler"
	"github.com/lpm0073/openai-lambda/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFunction(inv invoker) *function {
	cfg := &config.Config{OpenAI: config.OpenAIConfig{APIKey: "sk-test", Organization: "org-test", ImageN: 4, ImageSize: "1024x768"}}
	// Only requests that fail validation are sent, so no API client is needed.
	r := router.New(nil, cfg.OpenAI)
	return &function{
		handler: handler.New(cfg, r, zap.NewNop()),
		warmer:  newTestWarmer("openai-index", inv),
	}
}

func TestHandleRequest_Warmup(t *testing.T) {
	fn := newTestFunction(&fakeInvoker{})

	result, err := fn.handleRequest(context.Background(), json.RawMessage(`{"source":"warmup"}`))
	require.NoError(t, err)

	assert.Equal(t, 1, instancesWarmed(t, result))
}

func TestHandleRequest_Event(t *testing.T) {
	fn := newTestFunction(&fakeInvoker{})

	result, err := fn.handleRequest(context.Background(),
		json.RawMessage(`{"Records":[{"body":"{\"end_point\":\"Bogus\"}"}]}`))
	require.NoError(t, err)

	resp, ok := result.(domain.Response)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleRequest_NeverFails(t *testing.T) {
	fn := newTestFunction(&fakeInvoker{})

	for _, raw := range []string{`{}`, `null`, `"text"`, `{"Records":"nope"}`} {
		result, err := fn.handleRequest(context.Background(), json.RawMessage(raw))
		require.NoError(t, err, raw)

		resp := result.(domain.Response)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, raw)
	}
}

func TestHandleRequest_Batch(t *testing.T) {
	fn := newTestFunction(&fakeInvoker{})
	fn.batch = true

	result, err := fn.handleRequest(context.Background(), json.RawMessage(
		`{"Records":[{"body":"{\"end_point\":\"Bogus\"}"},{"body":"{\"end_point\":\"Audio\"}"}]}`))
	require.NoError(t, err)

	responses, ok := result.([]domain.Response)
	require.True(t, ok, "unexpected result type %T", result)
	require.Len(t, responses, 2)
	assert.Equal(t, http.StatusBadRequest, responses[0].StatusCode)
	assert.Equal(t, http.StatusInternalServerError, responses[1].StatusCode)
}

func TestHandleRequest_BatchWarmupFirst(t *testing.T) {
	fn := newTestFunction(&fakeInvoker{})
	fn.batch = true

	result, err := fn.handleRequest(context.Background(), json.RawMessage(`{"source":"warmup"}`))
	require.NoError(t, err)

	assert.Equal(t, 1, instancesWarmed(t, result))
}
