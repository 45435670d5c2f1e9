// Package tokens estimates prompt sizes by token count.
package tokens

import "github.com/lpm0073/openai-lambda/internal/domain"

// perMessageOverhead approximates the role and separator tokens the chat
// format adds around every message.
const perMessageOverhead = 4

// bytesPerToken is the average UTF-8 length of a BPE token in OpenAI
// tokenizers for English prompts.
const bytesPerToken = 4

// Estimate returns the approximate number of prompt tokens text will cost
// upstream. Any non-empty text costs at least one token. Length is measured
// in bytes, so multi-byte scripts estimate high.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return max(len(text)/bytesPerToken, 1)
}

// EstimateMessages estimates the prompt size of a chat conversation.
func EstimateMessages(messages []domain.Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead + Estimate(m.Content)
	}
	return total
}

// EstimateRequest estimates the prompt size of a request body, whichever
// field carries the prompt for its end point.
func EstimateRequest(body domain.RequestBody) int {
	if body.EndPoint == domain.ChatCompletion {
		return EstimateMessages(body.Messages)
	}
	return Estimate(body.InputText)
}
