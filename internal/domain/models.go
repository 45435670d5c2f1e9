// Package domain contains the core domain types for the OpenAI request handler.
package domain

// EndPoint names an OpenAI API operation.
type EndPoint string

// Supported end points.
const (
	Embedding      EndPoint = "Embedding"
	ChatCompletion EndPoint = "ChatCompletion"
	Moderation     EndPoint = "Moderation"
	Image          EndPoint = "Image"
	Audio          EndPoint = "Audio"
)

// EndPoints lists every end point in the order they are reported to callers.
var EndPoints = []EndPoint{Embedding, ChatCompletion, Moderation, Image, Audio}

// Event is the invocation payload delivered by the Lambda runtime.
// A nil Records means the field was absent from the payload.
type Event struct {
	Records         []Record `json:"Records"`
	IsBase64Encoded bool     `json:"isBase64Encoded,omitempty"`
}

// Record holds one request body.
type Record struct {
	Body            string `json:"body"`
	IsBase64Encoded bool   `json:"isBase64Encoded,omitempty"`
}

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system developer user assistant function tool"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// RequestBody is the JSON document carried by a record body.
type RequestBody struct {
	EndPoint  EndPoint  `json:"end_point"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages" validate:"omitempty,dive"`
	InputText string    `json:"input_text"`
	N         *int      `json:"n,omitempty" validate:"omitempty,min=1,max=10"`
	Size      string    `json:"size,omitempty"`
}

// Response is the envelope returned to the invoking platform.
type Response struct {
	IsBase64Encoded bool              `json:"isBase64Encoded"`
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
}

// ErrorDescriptor is the body of every non-200 response.
type ErrorDescriptor struct {
	Error       string `json:"error"`
	Description string `json:"description"`
}
