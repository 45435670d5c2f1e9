package main

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoker struct {
	mu      sync.Mutex
	inputs  []*lambdasdk.InvokeInput
	failing int32
}

func (f *fakeInvoker) Invoke(_ context.Context, params *lambdasdk.InvokeInput, _ ...func(*lambdasdk.Options)) (*lambdasdk.InvokeOutput, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, params)
	f.mu.Unlock()

	if atomic.AddInt32(&f.failing, -1) >= 0 {
		return nil, errors.New("throttled")
	}
	return &lambdasdk.InvokeOutput{StatusCode: 202}, nil
}

func newTestWarmer(functionName string, inv invoker) *warmer {
	w := newWarmer(functionName, zap.NewNop())
	w.delay = 0
	w.newClient = func(context.Context) (invoker, error) { return inv, nil }
	return w
}

func instancesWarmed(t *testing.T, result interface{}) int {
	t.Helper()
	m, ok := result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 200, m["statusCode"])
	body, ok := m["body"].(WarmupResponse)
	require.True(t, ok)
	assert.Equal(t, "warm", body.Status)
	return body.InstancesWarmed
}

func TestIsWarmupEvent(t *testing.T) {
	tests := []struct {
		name        string
		event       string
		isWarmup    bool
		concurrency int
	}{
		{"warmup without concurrency", `{"source":"warmup"}`, true, 0},
		{"warmup with concurrency", `{"source":"warmup","concurrency":3}`, true, 3},
		{"negative concurrency", `{"source":"warmup","concurrency":-2}`, true, 0},
		{"other source", `{"source":"aws.events"}`, false, 0},
		{"records event", `{"Records":[{"body":"{}"}]}`, false, 0},
		{"not an object", `[1,2,3]`, false, 0},
		{"invalid json", `{`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warmup, ok := IsWarmupEvent(json.RawMessage(tt.event))
			assert.Equal(t, tt.isWarmup, ok)
			if tt.isWarmup {
				require.NotNil(t, warmup)
				assert.Equal(t, tt.concurrency, warmup.Concurrency)
			}
		})
	}
}

func TestWarmer_NoConcurrency(t *testing.T) {
	inv := &fakeInvoker{}
	w := newTestWarmer("openai-index", inv)

	result, err := w.Handle(context.Background(), &WarmupEvent{Source: WarmupSource})
	require.NoError(t, err)

	assert.Equal(t, 1, instancesWarmed(t, result))
	assert.Empty(t, inv.inputs)
}

func TestWarmer_SelfInvoke(t *testing.T) {
	inv := &fakeInvoker{}
	w := newTestWarmer("openai-index", inv)

	result, err := w.Handle(context.Background(), &WarmupEvent{Source: WarmupSource, Concurrency: 3})
	require.NoError(t, err)

	assert.Equal(t, 4, instancesWarmed(t, result))
	require.Len(t, inv.inputs, 3)
	for _, in := range inv.inputs {
		assert.Equal(t, "openai-index", *in.FunctionName)
		assert.Equal(t, types.InvocationTypeEvent, in.InvocationType)

		var child WarmupEvent
		require.NoError(t, json.Unmarshal(in.Payload, &child))
		assert.Equal(t, WarmupSource, child.Source)
		assert.Equal(t, 0, child.Concurrency, "child invocations must not fan out again")
	}
}

func TestWarmer_PartialFailure(t *testing.T) {
	inv := &fakeInvoker{failing: 2}
	w := newTestWarmer("openai-index", inv)

	result, err := w.Handle(context.Background(), &WarmupEvent{Source: WarmupSource, Concurrency: 5})
	require.NoError(t, err)

	assert.Equal(t, 4, instancesWarmed(t, result))
}

func TestWarmer_ConcurrencyCap(t *testing.T) {
	inv := &fakeInvoker{}
	w := newTestWarmer("openai-index", inv)

	result, err := w.Handle(context.Background(), &WarmupEvent{Source: WarmupSource, Concurrency: 500})
	require.NoError(t, err)

	assert.Equal(t, maxWarmupConcurrency+1, instancesWarmed(t, result))
	assert.Len(t, inv.inputs, maxWarmupConcurrency)
}

func TestWarmer_MissingFunctionName(t *testing.T) {
	inv := &fakeInvoker{}
	w := newTestWarmer("", inv)

	result, err := w.Handle(context.Background(), &WarmupEvent{Source: WarmupSource, Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, instancesWarmed(t, result))
	assert.Empty(t, inv.inputs)
}
