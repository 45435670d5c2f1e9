package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lpm0073/openai-lambda/internal/apperr"
	"github.com/lpm0073/openai-lambda/internal/domain"
)

// newResponse wraps body into an envelope with the given status.
// See https://docs.aws.amazon.com/apigateway/latest/developerguide/http-api-develop-integrations-lambda.html
func newResponse(statusCode int, body any) domain.Response {
	if statusCode < 100 || statusCode > 599 {
		return errorResponse(apperr.New(apperr.Structural, "invalid HTTP response code received: %d", statusCode))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errorResponse(apperr.Wrap(apperr.Structural, err, "failed to encode response body"))
	}

	return domain.Response{
		IsBase64Encoded: false,
		StatusCode:      statusCode,
		Headers:         map[string]string{"Content-Type": "application/json"},
		Body:            string(payload),
	}
}

// errorResponse builds the envelope for a failure. The descriptor always
// marshals, so this never recurses more than once.
func errorResponse(err error) domain.Response {
	status := apperr.StatusCode(err)
	if status == http.StatusOK {
		status = http.StatusInternalServerError
	}

	descriptor := domain.ErrorDescriptor{
		Error:       err.Error(),
		Description: apperr.Trace(err),
	}

	payload, mErr := json.Marshal(descriptor)
	if mErr != nil {
		payload = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}

	return domain.Response{
		IsBase64Encoded: false,
		StatusCode:      status,
		Headers:         map[string]string{"Content-Type": "application/json"},
		Body:            string(payload),
	}
}
