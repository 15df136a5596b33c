package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestField_Types(t *testing.T) {
	f := Field{Code: "birthday", Type: "date,required"}
	assert.Equal(t, FieldTypeDate, f.PrimaryType())
	assert.True(t, f.IsDate())
	assert.True(t, f.HasType("required"))
	assert.False(t, f.HasType(FieldTypeBoolean))
	assert.Equal(t, "birthday", f.Path())

	f.PropertyPath = "applicant.birthday"
	assert.Equal(t, "applicant.birthday", f.Path())
}

func TestField_DefaultString(t *testing.T) {
	assert.Equal(t, "", Field{}.DefaultString())
	assert.Equal(t, "CONTACT", Field{Default: "CONTACT"}.DefaultString())
	assert.Equal(t, "false", Field{Default: false}.DefaultString())
	assert.Equal(t, "12.5", Field{Default: 12.5}.DefaultString())
}

func TestDefaultMatching_ToMatch(t *testing.T) {
	d := DefaultMatching{FieldID: 4, Entity: "CONTACT", Code: "PHONE", ValueType: "WORK", PhoneCodes: []string{"+49"}}
	m := d.ToMatch("auth-1")
	assert.Equal(t, int64(4), m.FieldID)
	assert.Equal(t, "auth-1", m.AuthID)
	assert.Equal(t, "PHONE", m.Code)
	assert.Equal(t, []string{"+49"}, m.PhoneCodes)
	assert.Zero(t, m.ID)
}
