package crm

import (
	"errors"
	"fmt"

	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// crmEntity serves crm.contact.* and crm.company.*.
type crmEntity struct {
	base
	prefix string
}

var crmSelect = []string{"*", "UF_*", "PHONE", "EMAIL", "WEB", "IM"}

func (a crmEntity) GetCall(callID, _ string, filter Filter) (Call, error) {
	if !filter.HasID() {
		return Call{}, missingID(a.tag)
	}
	return Call{ID: callID, Method: a.prefix + ".get", Params: map[string]any{"id": filter.ID}}, nil
}

func (a crmEntity) ListCall(callID, _ string, filter Filter) (Call, error) {
	params := map[string]any{"select": crmSelect}
	if len(filter.Filter) > 0 {
		params["filter"] = filter.Filter
	}
	if len(filter.Order) > 0 {
		params["order"] = filter.Order
	}
	if filter.Start > 0 {
		params["start"] = filter.Start
	}
	return Call{ID: callID, Method: a.prefix + ".list", Params: params}, nil
}

func (a crmEntity) ForeignKey(linked, _ string) (string, error) {
	switch {
	case a.tag == EntityContact && linked == EntityCompany:
		return "COMPANY_ID", nil
	case linked == EntityUser:
		return "ASSIGNED_BY_ID", nil
	case linked == AddressOf(a.tag):
		return "ID", nil
	}
	return "", unsupported(a.tag, CapabilityForeignKey)
}

func (a crmEntity) LinkedCall(callID string, _ models.Match, ref string) (Call, error) {
	return Call{ID: callID, Method: a.prefix + ".get", Params: map[string]any{"id": ref}}, nil
}

func (a crmEntity) DefaultCall(callID string, m models.Match) (Call, error) {
	if a.tag != EntityCompany {
		return a.base.DefaultCall(callID, m)
	}
	return Call{ID: callID, Method: a.prefix + ".get", Params: map[string]any{"id": m.DefaultValue}}, nil
}

func (a crmEntity) FieldsCall(callID, _ string) (Call, error) {
	return Call{ID: callID, Method: a.prefix + ".fields", Params: map[string]any{}}, nil
}

func (a crmEntity) LookupCall(callID, _, property string, value any) (Call, error) {
	return Call{ID: callID, Method: a.prefix + ".list", Params: map[string]any{
		"filter": map[string]any{property: value},
		"select": []string{"ID"},
	}}, nil
}

func (a crmEntity) AddOrUpdateCall(target Target, fields map[string]any) (Call, error) {
	method := a.prefix + ".add"
	if target.IsUpdate() {
		method = a.prefix + ".update"
	}
	return Call{ID: target.CallID, Method: method, Params: a.WrapPayload(target, fields)}, nil
}

func (a crmEntity) WrapPayload(target Target, fields map[string]any) map[string]any {
	payload := map[string]any{"fields": fields}
	if target.IsUpdate() {
		payload["id"] = target.RecordID
	}
	return payload
}

func (a crmEntity) SupportsUnmatched() bool { return true }

func (a crmEntity) IsIdentity() bool { return true }

// ErrMissingID is returned when a single-record read has no id to read.
var ErrMissingID = errors.New("get requires a record id")

func missingID(tag string) error {
	return fmt.Errorf("%s: %w", tag, ErrMissingID)
}
