package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TimeLayout is the accepted timestamp format. Fractional seconds are
// allowed on input.
const TimeLayout = "2006-01-02T15:04:05Z07:00"

// FieldError names one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any store access when input fails its
// schema.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Invalid returns a ValidationError for a single field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(fieldName)
	}
}

// fieldName reports fields by their wire name so errors cite tokens_in,
// not TokensIn.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return ""
}

// Validate runs the binding rules on v.
func Validate(v interface{}) error {
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return FromError(err)
	}
	return nil
}

// DecodeJSON unmarshals data into v and validates it. An empty body is
// treated as an empty object so that missing required fields are reported
// individually.
func DecodeJSON(data []byte, v interface{}) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return FromError(err)
	}
	return Validate(v)
}

// FromError converts decode, bind and validator errors into a
// ValidationError. Errors of any other kind are returned unchanged.
func FromError(err error) error {
	if err == nil {
		return nil
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := &ValidationError{}
		for _, fe := range fieldErrs {
			out.Errors = append(out.Errors, FieldError{Field: fe.Field(), Message: message(fe)})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return Invalid("body", "must be a JSON object")
		}
		return Invalid(typeErr.Field, "must be of type "+typeName(typeErr.Type))
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return Invalid("body", "must be valid JSON")
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return Invalid("query", fmt.Sprintf("%q is not a valid number", numErr.Num))
	}

	return err
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be greater than or equal to " + fe.Param()
	case "max", "lte":
		return "must be less than or equal to " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be an ISO 8601 date-time"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}
