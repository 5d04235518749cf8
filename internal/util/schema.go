package util

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema creates a JSON schema from a Go struct using reflection.
// Supported tags: json (name, omitempty), description, enum (comma separated).
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	properties := make(map[string]any)
	required := make([]string, 0)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				fieldName = parts[0]
			}
		}

		fieldSchema := map[string]any{
			"type": getJSONType(field.Type),
		}

		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}

		if enum := field.Tag.Get("enum"); enum != "" {
			values := strings.Split(enum, ",")
			for i := range values {
				values[i] = strings.TrimSpace(values[i])
			}
			fieldSchema["enum"] = values
		}

		if fieldSchema["type"] == "array" {
			elem := field.Type
			if elem.Kind() == reflect.Ptr {
				elem = elem.Elem()
			}
			fieldSchema["items"] = map[string]any{"type": getJSONType(elem.Elem())}
		}

		properties[fieldName] = fieldSchema

		if !hasOmitEmpty(jsonTag) && !isPointer(field.Type) {
			required = append(required, fieldName)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

// SchemaValidator validates argument maps against a compiled JSON schema.
// A validator built from an empty schema accepts every object.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

// CompileSchema compiles a JSON schema (as produced by CreateSchema or written
// by hand) once so it can be reused for every call.
func CompileSchema(schema map[string]any) (*SchemaValidator, error) {
	if len(schema) == 0 {
		return &SchemaValidator{}, nil
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &SchemaValidator{schema: compiled}, nil
}

// Validate checks params against the schema and returns a *ValidationError
// describing the first violation (all violations are listed in Message).
func (v *SchemaValidator) Validate(params map[string]any) error {
	if v == nil || v.schema == nil {
		return nil
	}
	if params == nil {
		params = map[string]any{}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return &ValidationError{Field: "(root)", Message: err.Error()}
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	first := errs[0]
	field := first.Field()
	if first.Type() == "required" {
		if prop, ok := first.Details()["property"].(string); ok {
			field = prop
		}
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.String())
	}

	return &ValidationError{
		Field:   field,
		Value:   first.Value(),
		Message: strings.Join(msgs, "; "),
	}
}

// ValidateParameters validates parameters against a JSON schema in one step.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	v, err := CompileSchema(schema)
	if err != nil {
		return err
	}
	return v.Validate(params)
}

// getJSONType returns the JSON schema type for a given Go type.
func getJSONType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return getJSONType(t.Elem())
	default:
		return "string"
	}
}

// hasOmitEmpty checks if a JSON tag has the "omitempty" option.
func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isPointer checks if a type is a pointer.
func isPointer(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr
}
