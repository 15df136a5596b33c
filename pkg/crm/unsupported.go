package crm

import (
	"fmt"

	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

type Capability string

const (
	CapabilityAdapter     Capability = "adapter"
	CapabilityGet         Capability = "get"
	CapabilityList        Capability = "list"
	CapabilityLinked      Capability = "linked"
	CapabilityDefault     Capability = "default"
	CapabilityFields      Capability = "fields"
	CapabilityLookup      Capability = "lookup"
	CapabilityWrite       Capability = "write"
	CapabilityForeignKey  Capability = "foreign_key"
	CapabilityParentCheck Capability = "parent_check"
)

// UnsupportedCapabilityError is returned when an entity tag is unknown or cannot do what was asked.
type UnsupportedCapabilityError struct {
	Entity     string
	Capability Capability
}

func (e *UnsupportedCapabilityError) Error() string {
	if e.Capability == CapabilityAdapter {
		return fmt.Sprintf("unknown CRM entity %q", e.Entity)
	}
	return fmt.Sprintf("CRM entity %q does not support %s", e.Entity, e.Capability)
}

func unsupported(tag string, c Capability) error {
	return &UnsupportedCapabilityError{Entity: tag, Capability: c}
}

// base provides the unsupported answer for every capability. Adapters embed it and override.
type base struct {
	tag string
}

func (b base) Tag() string { return b.tag }

func (b base) GetCall(string, string, Filter) (Call, error) {
	return Call{}, unsupported(b.tag, CapabilityGet)
}

func (b base) ListCall(string, string, Filter) (Call, error) {
	return Call{}, unsupported(b.tag, CapabilityList)
}

func (b base) Ref(callID, property string) string {
	return Ref(callID, property)
}

func (b base) ForeignKey(linked, childID string) (string, error) {
	return "", unsupported(b.tag, CapabilityForeignKey)
}

func (b base) LinkedCall(string, models.Match, string) (Call, error) {
	return Call{}, unsupported(b.tag, CapabilityLinked)
}

func (b base) DefaultCall(string, models.Match) (Call, error) {
	return Call{}, unsupported(b.tag, CapabilityDefault)
}

func (b base) FieldsCall(string, string) (Call, error) {
	return Call{}, unsupported(b.tag, CapabilityFields)
}

func (b base) LookupCall(string, string, string, any) (Call, error) {
	return Call{}, unsupported(b.tag, CapabilityLookup)
}

func (b base) LookupRef(callID string) string {
	return Ref(callID, "0", "ID")
}

func (b base) AddOrUpdateCall(Target, map[string]any) (Call, error) {
	return Call{}, unsupported(b.tag, CapabilityWrite)
}

func (b base) WrapPayload(_ Target, fields map[string]any) map[string]any {
	return fields
}

func (b base) SupportsUnmatched() bool { return false }

func (b base) IsIdentity() bool { return false }
