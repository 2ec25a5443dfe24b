package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxRequestBodySize limits request bodies to 64 KiB; download requests are
// tiny JSON documents.
const maxRequestBodySize = 64 << 10

// validate is the shared validator instance for request structs.
var validate = validator.New()

// DecodeJSON reads and decodes the request body into dst. Unknown fields are
// rejected so clients notice typos in field names.
func DecodeJSON(r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// ValidateRequest runs struct validation on a decoded request and returns a
// client-friendly message describing the first failing field.
func ValidateRequest(dst interface{}) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return fmt.Errorf("%s is required", field)
		case "url":
			return fmt.Errorf("%s must be a valid URL", field)
		default:
			return fmt.Errorf("%s is invalid", field)
		}
	}

	return fmt.Errorf("invalid request")
}
