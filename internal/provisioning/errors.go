package provisioning

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotFound is matched by a FetchError with HTTP status 404.
var ErrNotFound = errors.New("not found")

// FieldError is one field-level failure reported by the server. Field is the
// server's path (for example "spec.github.token"), not yet normalized.
type FieldError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
	Type   string `json:"type,omitempty"`
}

// FetchError is a failure the server described with a decodable payload.
type FetchError struct {
	Op         string
	StatusCode int
	Title      string
	Message    string
	Fields     []FieldError
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Title
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *FetchError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// GenericError is a transport failure or a response nothing could be read from.
type GenericError struct {
	Op  string
	Err error
}

func (e *GenericError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenericError) Unwrap() error {
	return e.Err
}

// failureBody accepts both the flat {errors:[...]} shape and a Kubernetes
// Status with details.causes.
type failureBody struct {
	Kind    string         `json:"kind"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Reason  string         `json:"reason"`
	Details *StatusDetails `json:"details"`
	Errors  []FieldError   `json:"errors"`
}

// decodeFailure turns a non-2xx response into a FetchError when the body is a
// recognised payload, and a GenericError otherwise.
func decodeFailure(op string, statusCode int, body []byte) error {
	var fb failureBody
	if len(body) == 0 || json.Unmarshal(body, &fb) != nil {
		return &GenericError{Op: op, Err: fmt.Errorf("unexpected status %d", statusCode)}
	}
	if fb.Message == "" && fb.Reason == "" && fb.Title == "" && len(fb.Errors) == 0 && fb.Details == nil {
		return &GenericError{Op: op, Err: fmt.Errorf("unexpected status %d", statusCode)}
	}

	fe := &FetchError{
		Op:         op,
		StatusCode: statusCode,
		Title:      fb.Title,
		Message:    fb.Message,
	}
	if fe.Title == "" {
		fe.Title = fb.Reason
	}
	if fe.Title == "" {
		fe.Title = http.StatusText(statusCode)
	}

	for _, e := range fb.Errors {
		if e.Field == "" && e.Detail == "" {
			continue
		}
		fe.Fields = append(fe.Fields, e)
	}
	if fb.Details != nil {
		for _, c := range fb.Details.Causes {
			if c.Field == "" && c.Message == "" {
				continue
			}
			fe.Fields = append(fe.Fields, FieldError{Field: c.Field, Detail: c.Message, Type: c.Reason})
		}
	}
	return fe
}

// ExtractFieldErrors returns the field-level errors carried by err, or nil if
// err is not a FetchError.
func ExtractFieldErrors(err error) []FieldError {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return nil
	}
	out := make([]FieldError, 0, len(fe.Fields))
	for _, f := range fe.Fields {
		out = append(out, FieldError{Field: strings.TrimSpace(f.Field), Detail: f.Detail, Type: f.Type})
	}
	return out
}
