package crm

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// user serves user.get, which answers with an array even for a single id.
type user struct {
	base
}

func (a user) GetCall(callID, _ string, filter Filter) (Call, error) {
	params := map[string]any{}
	switch {
	case filter.HasID():
		params["ID"] = filter.ID
	case len(filter.Filter) > 0:
		params["FILTER"] = filter.Filter
	default:
		return Call{}, missingID(a.tag)
	}
	return Call{ID: callID, Method: "user.get", Params: params}, nil
}

func (a user) ListCall(callID, _ string, filter Filter) (Call, error) {
	params := map[string]any{"ADMIN_MODE": true}
	if len(filter.Filter) > 0 {
		params["FILTER"] = filter.Filter
	}
	if filter.Start > 0 {
		params["start"] = filter.Start
	}
	return Call{ID: callID, Method: "user.get", Params: params}, nil
}

func (a user) Ref(callID, property string) string {
	return Ref(callID, "0", property)
}

func (a user) LinkedCall(callID string, _ models.Match, ref string) (Call, error) {
	return Call{ID: callID, Method: "user.get", Params: map[string]any{"ID": ref}}, nil
}

func (a user) DefaultCall(callID string, m models.Match) (Call, error) {
	return Call{ID: callID, Method: "user.get", Params: map[string]any{"ID": m.DefaultValue}}, nil
}

func (a user) FieldsCall(callID, _ string) (Call, error) {
	return Call{ID: callID, Method: "user.fields", Params: map[string]any{}}, nil
}

func (a user) LookupCall(callID, _, property string, value any) (Call, error) {
	return Call{ID: callID, Method: "user.get", Params: map[string]any{
		"FILTER": map[string]any{property: value},
	}}, nil
}

func (a user) AddOrUpdateCall(target Target, fields map[string]any) (Call, error) {
	method := "user.add"
	if target.IsUpdate() {
		method = "user.update"
	}
	return Call{ID: target.CallID, Method: method, Params: a.WrapPayload(target, fields)}, nil
}

func (a user) WrapPayload(target Target, fields map[string]any) map[string]any {
	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	if target.IsUpdate() {
		payload["ID"] = target.RecordID
	}
	return payload
}

func (a user) SupportsUnmatched() bool { return true }

func (a user) IsIdentity() bool { return true }
