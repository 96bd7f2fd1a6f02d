package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/voundbrand/go-authority/core"
)

// Request bodies are small JSON documents; anything past this is rejected.
const maxRequestBody = 1 << 20

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message  string         `json:"message"`
	Code     string         `json:"code,omitempty"`
	Fields   []fieldMessage `json:"fields,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type fieldMessage struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorEnvelope(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, errorEnvelope{Error: body})
}

// writeError renders any service error as the shared envelope. Statuses in
// the 5xx range keep a generic body; the real error goes to the log only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := core.HTTPStatusFor(err)
	body := errorBody{
		Message: "An unexpected error occurred",
		Code:    core.AuthorityErrorInternal,
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && status < http.StatusInternalServerError {
		body.Message = richErr.Message
		body.Code = richErr.TextCode
		for _, field := range richErr.AllValidationErrors() {
			body.Fields = append(body.Fields, fieldMessage{Field: field.Field, Message: field.Message})
		}
		if len(richErr.Metadata) > 0 {
			body.Metadata = richErr.Metadata
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"error", err.Error(),
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
			"status", status,
		)
	}
	writeErrorEnvelope(w, status, body)
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return httpBadRequestError("request body is required")
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := decoder.Decode(dst); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "request body is not valid JSON").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.AuthorityErrorBadInput)
	}
	return nil
}

func httpBadRequestError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.AuthorityErrorBadInput)
}

func httpValidationError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation(
		"request validation failed",
		goerrors.FieldError{Field: field, Message: message},
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.AuthorityErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}
