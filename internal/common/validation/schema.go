// Package validation checks documents against JSON schemas and reports
// failures per field.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// String renders the error as "<field>: <message>".
func (e ValidationError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// GetErrorMessages returns the rendered messages in field order.
func (vr *ValidationResult) GetErrorMessages() []string {
	msgs := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		msgs = append(msgs, e.String())
	}
	return msgs
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Validator holds a compiled schema.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles schema, given as a Go value (typically map[string]interface{}).
func NewValidator(schema interface{}) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate checks doc against the schema. The error return is reserved for
// documents that cannot be loaded at all.
func (v *Validator) Validate(doc interface{}) (*ValidationResult, error) {
	result, err := v.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	seen := make(map[string]bool)
	for _, re := range result.Errors() {
		ve := toValidationError(re)
		// one message per field is enough for the caller
		if seen[ve.Field] {
			continue
		}
		seen[ve.Field] = true
		out.Errors = append(out.Errors, ve)
	}
	sort.SliceStable(out.Errors, func(i, j int) bool {
		return out.Errors[i].Field < out.Errors[j].Field
	})
	return out, nil
}

func toValidationError(re gojsonschema.ResultError) ValidationError {
	field := re.Field()
	details := re.Details()

	if re.Type() == "required" {
		if prop, ok := details["property"].(string); ok {
			if field == "" || field == gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
				field = prop
			} else {
				field = field + "." + prop
			}
		}
	}

	return ValidationError{
		Field:   field,
		Message: messageFor(re.Type(), details, re.Description()),
		Code:    strings.ToUpper(re.Type()),
	}
}

func messageFor(errType string, details gojsonschema.ErrorDetails, fallback string) string {
	switch errType {
	case "required":
		return "is required"
	case "string_gte":
		if fmt.Sprint(details["min"]) == "1" {
			return "is required"
		}
		return fmt.Sprintf("must be at least %v characters", details["min"])
	case "string_lte":
		return fmt.Sprintf("must be at most %v characters", details["max"])
	case "pattern":
		return "must not be blank"
	case "const":
		return "must be accepted"
	case "enum":
		return fmt.Sprintf("must be one of %v", details["allowed"])
	case "number_gte", "number_gt":
		return fmt.Sprintf("must be at least %v", details["min"])
	case "number_lte", "number_lt":
		return fmt.Sprintf("must be at most %v", details["max"])
	case "invalid_type":
		return fmt.Sprintf("must be of type %v", details["expected"])
	default:
		return fallback
	}
}
