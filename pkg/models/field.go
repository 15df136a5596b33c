package models

import (
	"strings"
)

type FieldType string

const (
	FieldTypeInteger     FieldType = "integer"
	FieldTypeDouble      FieldType = "double"
	FieldTypeString      FieldType = "string"
	FieldTypeURL         FieldType = "url"
	FieldTypeDate        FieldType = "date"
	FieldTypeDatetime    FieldType = "datetime"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeEnumeration FieldType = "enumeration"
	FieldTypeUser        FieldType = "user"
	FieldTypeCrmContact  FieldType = "crm_contact"
	FieldTypeMoney       FieldType = "money"
	FieldTypeCrmCategory FieldType = "crm_category"
	FieldTypeCrmStatus   FieldType = "crm_status"
	FieldTypeCrm         FieldType = "crm"
)

// Field is one entry of the field catalog: a property of the Europace object and how it is shaped.
type Field struct {
	ID           int64  `json:"id" yaml:"id"`
	Code         string `json:"code" yaml:"code"`
	Entity       string `json:"entity" yaml:"entity"`
	PropertyPath string `json:"property_path,omitempty" yaml:"property_path"`
	// Type is a single type or a comma-joined composite such as "date,required".
	Type     string `json:"type" yaml:"type"`
	Base     bool   `json:"base" yaml:"base"`
	Default  any    `json:"default,omitempty" yaml:"default"`
	Multiple bool   `json:"multiple" yaml:"multiple"`
	LinkType string `json:"link_type,omitempty" yaml:"link_type"`
	Hint     string `json:"hint,omitempty" yaml:"hint"`
	Sort     int    `json:"sort" yaml:"sort"`
}

// Path returns the property path, falling back to the code.
func (f Field) Path() string {
	if f.PropertyPath != "" {
		return f.PropertyPath
	}
	return f.Code
}

// HasType reports whether the type string names t.
func (f Field) HasType(t FieldType) bool {
	return strings.Contains(f.Type, string(t))
}

// PrimaryType is the first component of a composite type.
func (f Field) PrimaryType() FieldType {
	primary, _, _ := strings.Cut(f.Type, ",")
	return FieldType(strings.TrimSpace(primary))
}

func (f Field) IsDate() bool {
	t := f.PrimaryType()
	return t == FieldTypeDate || t == FieldTypeDatetime
}

// DefaultString renders the catalog default as a string, empty when there is none.
func (f Field) DefaultString() string {
	switch v := f.Default.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return strings.TrimSpace(toString(v))
	}
}
