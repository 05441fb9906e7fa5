package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// RequestError is a failed REST call. It unwraps to ErrStaleState for a
// 409 and to ErrRequestFailed otherwise.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func NewRequestError(method, path string, statusCode int, message string) *RequestError {
	sentinel := ErrRequestFailed
	if statusCode == http.StatusConflict {
		sentinel = ErrStaleState
	}
	return &RequestError{
		Method:     method,
		Path:       path,
		StatusCode: statusCode,
		Message:    message,
		Err:        sentinel,
	}
}

func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in the error banner.
func UserMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) && reqErr.Message != "" {
		return reqErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
