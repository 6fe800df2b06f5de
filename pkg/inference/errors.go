package inference

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ParseErrorMessage extracts error.message from a JSON error body, falling
// back to the raw body.
func ParseErrorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// ErrorBody renders msg in the JSON error envelope.
func ErrorBody(msg string) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"error": map[string]string{"message": msg},
	})
	return b
}

// describeError turns a client error into the status and body handed to
// Handler.OnError.
func describeError(err error) (StatusInfo, []byte) {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		return StatusInfo{
			StatusCode: apiErr.HTTPStatusCode,
			Status:     http.StatusText(apiErr.HTTPStatusCode),
		}, ErrorBody(apiErr.Message)
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return StatusInfo{
			StatusCode: reqErr.HTTPStatusCode,
			Status:     http.StatusText(reqErr.HTTPStatusCode),
		}, []byte(reqErr.Error())
	}
	return StatusInfo{}, []byte(err.Error())
}
