// Package jsonschema implements the minimal JSON-compatible schema checker
// shared by the REST /validate-output endpoint and the validate_output tool
// (§4.8.2). No pack example ships a JSON-schema validator, so this is built
// directly on the standard library rather than a pack dependency.
package jsonschema

import "fmt"

// ValidationError is one schema violation, keyed by a JSON-pointer-like path.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Validate checks data against the subset of JSON Schema covering type,
// required, properties, items, and enum.
func Validate(data interface{}, schema map[string]interface{}, path string) []ValidationError {
	if schema == nil {
		return nil
	}
	var errs []ValidationError

	if wantType, ok := schema["type"].(string); ok {
		if !matchesType(data, wantType) {
			errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf("expected type %q", wantType)})
			return errs
		}
	}

	if enum, ok := schema["enum"].([]interface{}); ok {
		if !inEnum(data, enum) {
			errs = append(errs, ValidationError{Path: path, Message: "value is not one of the allowed enum values"})
		}
	}

	switch v := data.(type) {
	case map[string]interface{}:
		if required, ok := schema["required"].([]interface{}); ok {
			for _, f := range required {
				name, _ := f.(string)
				if _, present := v[name]; !present {
					errs = append(errs, ValidationError{Path: path + "." + name, Message: "required field is missing"})
				}
			}
		}
		if props, ok := schema["properties"].(map[string]interface{}); ok {
			for name, sub := range props {
				subSchema, _ := sub.(map[string]interface{})
				if val, present := v[name]; present {
					errs = append(errs, Validate(val, subSchema, path+"."+name)...)
				}
			}
		}
	case []interface{}:
		if items, ok := schema["items"].(map[string]interface{}); ok {
			for i, el := range v {
				errs = append(errs, Validate(el, items, fmt.Sprintf("%s[%d]", path, i))...)
			}
		}
	}

	return errs
}

func matchesType(data interface{}, want string) bool {
	switch want {
	case "object":
		_, ok := data.(map[string]interface{})
		return ok
	case "array":
		_, ok := data.([]interface{})
		return ok
	case "string":
		_, ok := data.(string)
		return ok
	case "number":
		_, ok := data.(float64)
		return ok
	case "integer":
		f, ok := data.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := data.(bool)
		return ok
	case "null":
		return data == nil
	default:
		return true
	}
}

func inEnum(data interface{}, enum []interface{}) bool {
	for _, v := range enum {
		if fmt.Sprintf("%v", v) == fmt.Sprintf("%v", data) {
			return true
		}
	}
	return false
}
