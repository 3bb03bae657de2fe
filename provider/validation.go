package provider

import (
	"strings"
)

// Field types understood by ValidateConfigFields.
const (
	FieldString = "string"
	FieldURL    = "url"
)

// ConfigField is one required setting. Code is the requirement code
// reported when the value is blank or does not match its type.
type ConfigField struct {
	Code  string
	Value string
	Type  string
}

// ValidateConfigFields checks every field and returns one requirement code per
// invalid field, in field order. A nil result means all fields are valid.
func ValidateConfigFields(fields []ConfigField) []string {
	var codes []string
	for _, field := range fields {
		if !validField(field) {
			codes = append(codes, field.Code)
		}
	}
	return codes
}

func validField(field ConfigField) bool {
	value := strings.TrimSpace(field.Value)
	if value == "" {
		return false
	}
	switch field.Type {
	case FieldURL:
		return IsAbsoluteURL(value)
	default:
		return true
	}
}
