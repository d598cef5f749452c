package response

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgErrors "github.com/vogiaan1904/ticketbottle-lightning/pkg/errors"
)

type Resp struct {
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

func parseHttpError(err error) (int, Resp) {
	var he *pkgErrors.HTTPError
	if errors.As(err, &he) {
		statusCode := he.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusBadRequest
		}

		return statusCode, Resp{
			ErrorCode: he.Code,
			Message:   he.Message,
		}
	}

	return http.StatusInternalServerError, Resp{
		ErrorCode: "TKT500",
		Message:   "Internal server error",
	}
}

func JSON(w http.ResponseWriter, statusCode int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(body)
}

func Success(w http.ResponseWriter, statusCode int, data any) error {
	return JSON(w, statusCode, Resp{Message: "success", Data: data})
}

func Error(w http.ResponseWriter, err error) error {
	statusCode, resp := parseHttpError(err)
	return JSON(w, statusCode, resp)
}

// ValidationError reports field-level problems alongside the coded error.
func ValidationError(w http.ResponseWriter, err error, details any) error {
	statusCode, resp := parseHttpError(err)
	resp.Errors = details
	return JSON(w, statusCode, resp)
}
