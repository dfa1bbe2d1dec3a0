package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/utafrali/storefront/pkg/validator"
)

const maxBodyBytes = 1 << 20

// envelope is the success body shared by every endpoint: a success flag, an
// optional message and named payloads.
type envelope map[string]any

func ok(message string) envelope {
	e := envelope{"success": true}
	if message != "" {
		e["message"] = message
	}
	return e
}

func (e envelope) with(key string, v any) envelope {
	e[key] = v
	return e
}

// decode reads a size-limited JSON body into dst and validates it. An empty
// body is validated like an empty object.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := validator.DecodeAndValidate(r, dst)
	if errors.Is(err, io.EOF) {
		return validator.Validate(dst)
	}
	return err
}
