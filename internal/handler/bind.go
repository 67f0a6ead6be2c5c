package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/homepage/internal/apperror"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// messageOverrider lets a request type phrase its own validation errors.
type messageOverrider interface {
	validationMessage(fe validator.FieldError) (string, bool)
}

// fieldLabels are the display names of JSON fields whose default
// capitalisation reads badly.
var fieldLabels = map[string]string{
	"sid":          "SID",
	"messageId":    "Message ID",
	"display_name": "Display name",
}

// bind decodes the JSON body into dst and validates it. An empty body is
// treated as {} so actions without a payload (clear, logout) need no body.
func bind(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.ValidationFailed("body", "Request body too large")
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return fmt.Errorf("handler: validating %T: %w", dst, err)
		}
		return validationError(dst, verrs[0])
	}
	return nil
}

func validationError(dst any, fe validator.FieldError) error {
	if o, ok := dst.(messageOverrider); ok {
		if msg, ok := o.validationMessage(fe); ok {
			return apperror.ValidationFailed(fe.Field(), msg)
		}
	}

	label := fieldLabel(fe.Field())
	var msg string
	switch fe.Tag() {
	case "required":
		msg = label + " is required"
	case "max":
		msg = fmt.Sprintf("%s must be %s characters or fewer", label, fe.Param())
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "email":
		msg = label + " must be a valid email address"
	default:
		msg = label + " is invalid"
	}
	return apperror.ValidationFailed(fe.Field(), msg)
}

func fieldLabel(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	if field == "" {
		return "Field"
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

// idParam reads an id from the {id} path segment or the ?id= query.
func idParam(r *http.Request, urlParam string) string {
	if urlParam != "" {
		return urlParam
	}
	return r.URL.Query().Get("id")
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
