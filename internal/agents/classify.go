package agents

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	apperrors "crypto-analyst/internal/errors"
)

// Classify turns a provider failure into a ProviderError with the class
// the chain acts on.
func Classify(provider, model string, err error) *apperrors.ProviderError {
	var pe *apperrors.ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	status := statusCode(err)
	return apperrors.NewProviderError(provider, model, classOf(err, status), status, err)
}

func classOf(err error, status int) apperrors.FailureClass {
	switch {
	case errors.Is(err, apperrors.ErrCircuitOpen), errors.Is(err, apperrors.ErrEmptyCompletion):
		return apperrors.FailureExhausted
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		return apperrors.FailureRetryable
	}

	switch {
	case status == 0:
		var netErr net.Error
		if errors.As(err, &netErr) {
			return apperrors.FailureRetryable
		}
		return apperrors.FailureExhausted
	case status == http.StatusRequestTimeout, status >= 500:
		return apperrors.FailureRetryable
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.FailureInvalidRequest
	}
	// 401, 403, 429 and the rest of 4xx will not improve on retry.
	return apperrors.FailureExhausted
}

// statusCode digs the HTTP status out of the SDK error types.
func statusCode(err error) int {
	var oaiAPI *openai.APIError
	if errors.As(err, &oaiAPI) {
		return oaiAPI.HTTPStatusCode
	}
	var oaiReq *openai.RequestError
	if errors.As(err, &oaiReq) {
		return oaiReq.HTTPStatusCode
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var gemErr genai.APIError
	if errors.As(err, &gemErr) {
		return gemErr.Code
	}
	var gemErrPtr *genai.APIError
	if errors.As(err, &gemErrPtr) {
		return gemErrPtr.Code
	}
	return 0
}
