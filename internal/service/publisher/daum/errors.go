package daum

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// GatewayError is a failed gateway call: either a non-2xx response or a
// transport failure (StatusCode 0).
type GatewayError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("daum gateway request failed: %v", e.Err)
	}
	return fmt.Sprintf("daum gateway returned status %d: %s", e.StatusCode, e.Message())
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Status is the HTTP status reported back to callers; transport failures map to 500.
func (e *GatewayError) Status() int {
	if e.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

// Message prefers the gateway's errorMessage field over the raw body.
func (e *GatewayError) Message() string {
	var body struct {
		ErrorMessage string `json:"errorMessage"`
		Message      string `json:"message"`
	}
	if len(e.Body) > 0 && json.Unmarshal(e.Body, &body) == nil {
		if body.ErrorMessage != "" {
			return body.ErrorMessage
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if snippet := bodySnippet(e.Body); snippet != "" {
		return snippet
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Data is the upstream body when there is one, else a {"message": ...} object.
func (e *GatewayError) Data() interface{} {
	if len(e.Body) > 0 {
		return responseData(e.Body)
	}
	return map[string]string{"message": e.Message()}
}

// PreconditionError rejects an action before any gateway call is made.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return e.Reason
}

// ErrProductionRequiresPublish guards production pushes.
var ErrProductionRequiresPublish = &PreconditionError{Reason: "production push requires published status"}

// AsGatewayError wraps any error as a *GatewayError.
func AsGatewayError(err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &GatewayError{Err: err}
}

// ErrorMessage extracts the most useful text from err for audit rows and logs.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Message()
	}
	return err.Error()
}

func bodySnippet(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if len(body) > 512 {
		body = body[:512]
	}
	return strings.TrimSpace(string(body))
}

// responseData returns body as raw JSON when valid, otherwise as a string.
func responseData(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func jsonBytes(v interface{}) ([]byte, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}
