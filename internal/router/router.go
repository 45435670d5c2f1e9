// Package router validates requests against the end-point table and routes
// them to the matching OpenAI API operation.
package router

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lpm0073/openai-lambda/internal/apperr"
	"github.com/lpm0073/openai-lambda/internal/config"
	"github.com/lpm0073/openai-lambda/internal/domain"
	"github.com/lpm0073/openai-lambda/internal/metrics"
	"github.com/lpm0073/openai-lambda/internal/tokens"
	"github.com/lpm0073/openai-lambda/internal/upstream"
	openai "github.com/sashabaranov/go-openai"
)

// field is a request body field an end point may require.
type field struct {
	name    string
	present func(domain.RequestBody) bool
}

var (
	fieldMessages = field{
		name:    "messages",
		present: func(b domain.RequestBody) bool { return len(b.Messages) > 0 },
	}
	fieldInputText = field{
		name:    "input_text",
		present: func(b domain.RequestBody) bool { return b.InputText != "" },
	}
)

// route describes what an end point accepts.
type route struct {
	// models is the allow-list; entries may contain '*' wildcards.
	// An empty list means the end point takes no model.
	models []string
	// modelOptional allows an empty model even when models is set.
	modelOptional bool
	required      []field
	unimplemented bool
}

// routes is the single source of truth for end-point validation.
var routes = map[domain.EndPoint]route{
	domain.ChatCompletion: {
		models: []string{
			"gpt-4",
			"gpt-4-0613",
			"gpt-4-32k",
			"gpt-4-32k-0613",
			"gpt-3.5-turbo",
			"gpt-3.5-turbo-0613",
			"gpt-3.5-turbo-16k",
			"gpt-3.5-turbo-16k-0613",
		},
		required: []field{fieldMessages},
	},
	domain.Embedding: {
		models: []string{
			"text-embedding-ada-002",
			"text-similarity-*-001",
			"text-search-*-*-001",
			"code-search-*-*-001",
		},
		required: []field{fieldInputText},
	},
	domain.Moderation: {
		models:        []string{"text-moderation-stable", "text-moderation-latest"},
		modelOptional: true,
		required:      []field{fieldInputText},
	},
	domain.Image: {
		required: []field{fieldInputText},
	},
	domain.Audio: {
		unimplemented: true,
	},
}

// Router routes requests to the OpenAI API.
type Router struct {
	api       upstream.API
	validate  *validator.Validate
	imageN    int
	imageSize string
}

// New creates a new Router.
func New(api upstream.API, cfg config.OpenAIConfig) *Router {
	return &Router{
		api:       api,
		validate:  validator.New(),
		imageN:    cfg.ImageN,
		imageSize: cfg.ImageSize,
	}
}

// IsValidEndPoint checks if an end point is known.
func IsValidEndPoint(ep domain.EndPoint) bool {
	_, ok := routes[ep]
	return ok
}

// IsValidModel checks if a model is allowed for an end point.
func IsValidModel(ep domain.EndPoint, model string) bool {
	rt, ok := routes[ep]
	if !ok {
		return false
	}
	if len(rt.models) == 0 {
		return true
	}
	if model == "" {
		return rt.modelOptional
	}
	_, ok = rt.match(model)
	return ok
}

// match returns the allow-list entry model matches.
func (rt route) match(model string) (string, bool) {
	for _, pattern := range rt.models {
		if matched, err := path.Match(pattern, model); err == nil && matched {
			return pattern, true
		}
	}
	return "", false
}

// modelLabel maps a validated model onto a bounded set of metric label
// values: the allow-list entry it matched, "unspecified" or "other".
func modelLabel(ep domain.EndPoint, model string) string {
	if model == "" {
		return "unspecified"
	}
	if pattern, ok := routes[ep].match(model); ok {
		return pattern
	}
	return "other"
}

// Validate checks a request body against the end-point table.
func (r *Router) Validate(body domain.RequestBody) error {
	rt, ok := routes[body.EndPoint]
	if !ok {
		return apperr.New(apperr.Validation,
			"invalid end_point %q; valid OpenAI Endpoints: %v", body.EndPoint, domain.EndPoints)
	}

	if rt.unimplemented {
		return apperr.New(apperr.Unimplemented, "%s: not implemented", body.EndPoint)
	}

	if !IsValidModel(body.EndPoint, body.Model) {
		return apperr.New(apperr.Validation,
			"invalid model %q; valid %s models: %v", body.Model, body.EndPoint, rt.models)
	}

	for _, f := range rt.required {
		if !f.present(body) {
			return apperr.New(apperr.Validation, "%s is required for %s", f.name, body.EndPoint)
		}
	}

	if err := r.validate.Struct(body); err != nil {
		return apperr.Wrap(apperr.Validation, err, "invalid request body")
	}

	return nil
}

// Dispatch validates a request and invokes the matching API operation.
// It returns the raw upstream result on success.
func (r *Router) Dispatch(ctx context.Context, body domain.RequestBody) (any, error) {
	if err := r.Validate(body); err != nil {
		return nil, err
	}

	model := modelLabel(body.EndPoint, body.Model)
	metrics.EstimatedPromptTokens.
		WithLabelValues(string(body.EndPoint), model).
		Add(float64(tokens.EstimateRequest(body)))

	start := time.Now()
	result, err := r.invoke(ctx, body)
	metrics.UpstreamDuration.
		WithLabelValues(string(body.EndPoint), model).
		Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, upstream.Classify(err, string(body.EndPoint))
	}
	return result, nil
}

func (r *Router) invoke(ctx context.Context, body domain.RequestBody) (any, error) {
	switch body.EndPoint {
	case domain.ChatCompletion:
		// https://platform.openai.com/docs/guides/gpt/chat-completions-api
		return r.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    body.Model,
			Messages: chatMessages(body.Messages),
		})

	case domain.Embedding:
		return r.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: body.InputText,
			Model: openai.EmbeddingModel(body.Model),
		})

	case domain.Moderation:
		return r.api.Moderations(ctx, openai.ModerationRequest{
			Input: body.InputText,
			Model: body.Model,
		})

	case domain.Image:
		n := r.imageN
		if body.N != nil {
			n = *body.N
		}
		size := r.imageSize
		if body.Size != "" {
			size = body.Size
		}
		return r.api.CreateImage(ctx, openai.ImageRequest{
			Prompt: body.InputText,
			N:      n,
			Size:   size,
		})
	}

	// Validate rejects everything else first.
	return nil, fmt.Errorf("no operation for end point %q", body.EndPoint)
}

func chatMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
			Name:    m.Name,
		})
	}
	return out
}
