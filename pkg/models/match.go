package models

// Match binds a catalog Field to a CRM field for one tenant.
type Match struct {
	ID               int64    `json:"id"`
	FieldID          int64    `json:"field_id"`
	AuthID           string   `json:"auth_id"`
	Entity           string   `json:"entity"`
	Code             string   `json:"code,omitempty"`
	ChildType        string   `json:"child_type,omitempty"`
	ChildID          string   `json:"child_id,omitempty"`
	ChildCode        string   `json:"child_code,omitempty"`
	ValueType        string   `json:"value_type,omitempty"`
	DefaultValue     string   `json:"default_value,omitempty"`
	DefaultView      string   `json:"default_view,omitempty"`
	PhoneCodes       []string `json:"phone_codes,omitempty"`
	DefaultPhoneCode string   `json:"default_phone_code,omitempty"`
}

// DefaultMatching is a tenant independent Match template copied on first install.
type DefaultMatching struct {
	ID               int64    `json:"id" yaml:"-"`
	FieldID          int64    `json:"field_id" yaml:"-"`
	FieldEntity      string   `json:"field_entity" yaml:"field_entity"`
	FieldCode        string   `json:"field_code" yaml:"field_code"`
	Entity           string   `json:"entity" yaml:"entity"`
	Code             string   `json:"code,omitempty" yaml:"code"`
	ChildType        string   `json:"child_type,omitempty" yaml:"child_type"`
	ChildID          string   `json:"child_id,omitempty" yaml:"child_id"`
	ChildCode        string   `json:"child_code,omitempty" yaml:"child_code"`
	ValueType        string   `json:"value_type,omitempty" yaml:"value_type"`
	DefaultValue     string   `json:"default_value,omitempty" yaml:"default_value"`
	DefaultView      string   `json:"default_view,omitempty" yaml:"default_view"`
	PhoneCodes       []string `json:"phone_codes,omitempty" yaml:"phone_codes"`
	DefaultPhoneCode string   `json:"default_phone_code,omitempty" yaml:"default_phone_code"`
}

// ToMatch instantiates the template for a tenant.
func (d DefaultMatching) ToMatch(authID string) Match {
	return Match{
		FieldID:          d.FieldID,
		AuthID:           authID,
		Entity:           d.Entity,
		Code:             d.Code,
		ChildType:        d.ChildType,
		ChildID:          d.ChildID,
		ChildCode:        d.ChildCode,
		ValueType:        d.ValueType,
		DefaultValue:     d.DefaultValue,
		DefaultView:      d.DefaultView,
		PhoneCodes:       d.PhoneCodes,
		DefaultPhoneCode: d.DefaultPhoneCode,
	}
}

// FieldView is a catalog Field joined with the tenant's Match, if any.
type FieldView struct {
	Field
	Match *Match `json:"match,omitempty"`
	// Address is set for display when the match targets the CRM address sub-entity.
	Address bool `json:"address,omitempty"`
}

func (v FieldView) Matched() bool {
	return v.Match != nil && v.Match.Entity != ""
}

// MatchRequest is one row of a "save fields" request from the configuration UI.
type MatchRequest struct {
	FieldID          int64    `json:"field_id" validate:"required"`
	Entity           string   `json:"entity"`
	Code             string   `json:"code"`
	Address          bool     `json:"address"`
	ChildType        string   `json:"child_type"`
	ChildID          string   `json:"child_id"`
	ChildCode        string   `json:"child_code"`
	ValueType        string   `json:"value_type"`
	DefaultValue     string   `json:"default_value"`
	DefaultView      string   `json:"default_view"`
	PhoneCodes       []string `json:"phone_codes"`
	DefaultPhoneCode string   `json:"default_phone_code"`
}
