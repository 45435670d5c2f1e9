// Package upstream wraps the OpenAI API client and classifies its failures.
package upstream

import (
	"context"
	"errors"
	"net/http"

	"github.com/lpm0073/openai-lambda/internal/apperr"
	"github.com/lpm0073/openai-lambda/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// API is the subset of the OpenAI client the router dispatches to.
// *openai.Client satisfies it.
type API interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// New creates an OpenAI client from configuration.
func New(cfg config.OpenAIConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	c.OrgID = cfg.Organization
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}

// Classify tags an error returned by the OpenAI client. Errors the API
// rejected with a 4xx status (other than 429) become validation errors.
// Everything else is an upstream failure.
func Classify(err error, op string) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isClientError(apiErr.HTTPStatusCode) {
		return apperr.Wrap(apperr.Validation, err, "%s rejected the request", op)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isClientError(reqErr.HTTPStatusCode) {
		return apperr.Wrap(apperr.Validation, err, "%s rejected the request", op)
	}

	return apperr.Wrap(apperr.Upstream, err, "%s failed", op)
}

func isClientError(status int) bool {
	if status == http.StatusTooManyRequests {
		return false
	}
	return status >= http.StatusBadRequest && status < http.StatusInternalServerError
}
