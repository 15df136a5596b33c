package crm

import (
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

// Entity tags stored on matches.
const (
	EntityContact        = "CONTACT"
	EntityCompany        = "COMPANY"
	EntityUser           = "USER"
	EntitySmartProcess   = "SMART_PROCESS"
	EntityList           = "LIST"
	EntityCrmStatus      = "CRM_STATUS"
	EntityContactAddress = "CONTACT_ADDRESS"
	EntityCompanyAddress = "COMPANY_ADDRESS"
	EntityIblockSection  = "IBLOCK_SECTION"
	EntityCrmCategory    = "CRM_CATEGORY"
	EntityField          = "FIELD"

	AddressSuffix = "_ADDRESS"
)

// Adapter builds the calls for one CRM entity tag. Capabilities an entity lacks
// return *UnsupportedCapabilityError.
type Adapter interface {
	Tag() string

	// GetCall reads one base record. childID is the sub-type selector of the base match.
	GetCall(callID, childID string, filter Filter) (Call, error)
	ListCall(callID, childID string, filter Filter) (Call, error)
	// Ref points at a property of this entity's single-record response.
	Ref(callID, property string) string
	// ForeignKey names the property on this entity holding the id of a linked entity.
	ForeignKey(linked, linkedChildID string) (string, error)

	// LinkedCall reads this entity as linked data. ref is a placeholder holding the linked id.
	LinkedCall(callID string, match models.Match, ref string) (Call, error)
	// DefaultCall reads the record a match's default value refers to.
	DefaultCall(callID string, match models.Match) (Call, error)
	// FieldsCall reads the field metadata, including enumeration items.
	FieldsCall(callID, childID string) (Call, error)

	// LookupCall searches a record by property so a write can reference its id.
	LookupCall(callID, childID, property string, value any) (Call, error)
	LookupRef(callID string) string
	AddOrUpdateCall(target Target, fields map[string]any) (Call, error)
	WrapPayload(target Target, fields map[string]any) map[string]any

	SupportsUnmatched() bool
	// IsIdentity is true for entities whose default values are record ids.
	IsIdentity() bool
}

// Source is the base read a linked call hangs off.
type Source struct {
	CallID  string
	Adapter Adapter
}

func (s Source) Ref(property string) string {
	return s.Adapter.Ref(s.CallID, property)
}

// ForeignRef points at the base property holding the linked entity's id.
func (s Source) ForeignRef(linked, linkedChildID string) (string, error) {
	key, err := s.Adapter.ForeignKey(linked, linkedChildID)
	if err != nil {
		return "", err
	}
	return s.Ref(key), nil
}

// IsAddress reports whether tag is an address sub-entity tag.
func IsAddress(tag string) bool {
	return tag == EntityContactAddress || tag == EntityCompanyAddress
}

// AddressOf returns the address sub-entity tag of an owner tag.
func AddressOf(owner string) string {
	return owner + AddressSuffix
}
