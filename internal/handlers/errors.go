package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMessageInternal is the generic message for 500 responses. Do not expose internal details to clients.
const ErrMessageInternal = "internal server error"

// JSONError sends a JSON error response with a single "error" field.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// JSONValidationError sends a JSON error response with "error" and optional "fields" for field-level details.
// status is typically http.StatusBadRequest (400).
func JSONValidationError(w http.ResponseWriter, message string, fields map[string]string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	out := map[string]interface{}{"error": message}
	if len(fields) > 0 {
		out["fields"] = fields
	}
	json.NewEncoder(w).Encode(out)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// bcrypt rejects input longer than 72 bytes, while max counts runes.
	v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && len(fl.Field().String()) <= n
	})
	// Postgres TEXT cannot hold NUL.
	v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return !strings.ContainsRune(fl.Field().String(), 0)
	})
	return v
}

// decodeAndValidate decodes the JSON body into dst and runs struct validation.
// On failure it writes the response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	return decodeJSON(w, r, dst) && validateBody(w, dst)
}

// decodeJSON decodes the body into dst, answering 413 past the body limit and 400 otherwise.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if isTooLarge(err) {
			JSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		JSONError(w, "invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func isTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// validateBody runs struct validation on an already decoded body.
func validateBody(w http.ResponseWriter, body interface{}) bool {
	err := validate.Struct(body)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		JSONError(w, "invalid request", http.StatusBadRequest)
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	JSONValidationError(w, "validation failed", fields, http.StatusBadRequest)
	return false
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "maxbytes":
		return "must be at most " + fe.Param() + " bytes"
	case "nonul":
		return "must not contain NUL characters"
	default:
		return "invalid"
	}
}
