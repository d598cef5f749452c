package errors

import "fmt"

// HTTPError is a coded API error. Code is stable across releases and is
// what clients should match on.
type HTTPError struct {
	Code       string
	Message    string
	StatusCode int
}

func NewHTTPError(code string, message string, statusCode int) *HTTPError {
	return &HTTPError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("%s - %s", e.Code, e.Message)
}

// Is matches any HTTPError carrying the same code.
func (e *HTTPError) Is(target error) bool {
	t, ok := target.(*HTTPError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}
