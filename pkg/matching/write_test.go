package matching

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

func plusOne() *time.Location {
	return time.FixedZone("UTC+01:00", 3600)
}

func customerRecord() map[string]any {
	return map[string]any{
		"externalId": "5",
		"person": map[string]any{
			"firstName":   "Anna",
			"lastName":    "Muster",
			"birthDate":   "1985-04-12",
			"nationality": "DE",
			"smoker":      true,
		},
		"contact": map[string]any{
			"email": "anna@example.de",
			"phone": "+49176555",
		},
	}
}

func TestCompileWriteBatch_UpdateContact(t *testing.T) {
	record := customerRecord()
	record["contact"].(map[string]any)["phone"] = "0176 555"
	delete(record["person"].(map[string]any), "lastName")

	calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(customerFields(), record, WriteTarget{
		ValueOptions: ValueOptions{Location: plusOne()},
		RecordID:     5,
		CallID:       "CUSTOMER_abc",
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	call := calls[0]
	assert.Equal(t, "CUSTOMER_abc", call.ID)
	assert.Equal(t, "crm.contact.update", call.Method)
	assert.Equal(t, int64(5), call.Params["id"])
	assert.Equal(t, map[string]any{
		"NAME":          "Anna",
		"BIRTHDATE":     "1985-04-12",
		"UF_CRM_SMOKER": "Y",
		"EMAIL":         []any{map[string]any{"VALUE": "anna@example.de", "VALUE_TYPE": "WORK"}},
		"PHONE":         []any{map[string]any{"VALUE": "+49176555", "VALUE_TYPE": "WORK"}},
	}, call.Params["fields"])
}

func TestCompileWriteBatch_Add(t *testing.T) {
	calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(customerFields(), customerRecord(), WriteTarget{CallID: "CUSTOMER_new"})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	assert.Equal(t, "crm.contact.add", calls[0].Method)
	assert.NotContains(t, calls[0].Params, "id")
}

func TestCompileWriteBatch_PrependsLookup(t *testing.T) {
	bank := view(113, "bank", "bank.name", "string", &models.Match{
		Entity:    "CONTACT",
		Code:      "UF_CRM_BANK",
		ChildType: "LIST",
		ChildID:   "31",
		ChildCode: "NAME",
	})
	record := map[string]any{"bank": map[string]any{"name": "Sparkasse"}}

	calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch([]models.FieldView{baseView("CONTACT"), bank}, record, WriteTarget{
		RecordID: 5,
		CallID:   "CUSTOMER_abc",
	})
	require.NoError(t, err)
	require.Len(t, calls, 2)

	lookup := calls[0]
	assert.Equal(t, "CUSTOMER_abc_bank", lookup.ID)
	assert.Equal(t, "lists.element.get", lookup.Method)
	assert.Equal(t, map[string]any{"NAME": "Sparkasse"}, lookup.Params["FILTER"])

	fields := calls[1].Params["fields"].(map[string]any)
	assert.Equal(t, "$result[CUSTOMER_abc_bank][0][ID]", fields["UF_CRM_BANK"])
}

func TestCompileWriteBatch_SkipsLinkedEntities(t *testing.T) {
	employer := view(109, "employer", "job.employer", "string", &models.Match{Entity: "COMPANY", Code: "TITLE"})

	calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch([]models.FieldView{baseView("CONTACT"), employer},
		map[string]any{"job": map[string]any{"employer": "ACME"}}, WriteTarget{RecordID: 5, CallID: "c"})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Empty(t, calls[0].Params["fields"])
}

func addressFields() []models.FieldView {
	return []models.FieldView{
		baseView("CONTACT"),
		view(107, "street", "address.street", "string", &models.Match{Entity: "CONTACT_ADDRESS", Code: "ADDRESS_1", ValueType: "1"}),
		view(109, "city", "address.city", "string", &models.Match{Entity: "CONTACT_ADDRESS", Code: "CITY", ValueType: "1"}),
	}
}

func TestCompileWriteBatch_Address(t *testing.T) {
	record := map[string]any{"address": map[string]any{"street": "Hauptstr. 1", "city": "Berlin"}}

	t.Run("add references the new contact", func(t *testing.T) {
		calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(addressFields(), record, WriteTarget{CallID: "CUSTOMER_abc"})
		require.NoError(t, err)
		require.Len(t, calls, 2)

		assert.Equal(t, "crm.contact.add", calls[0].Method)
		assert.Equal(t, "CUSTOMER_abc_address_1", calls[1].ID)
		assert.Equal(t, "crm.address.add", calls[1].Method)
		assert.Equal(t, map[string]any{
			"ADDRESS_1":      "Hauptstr. 1",
			"CITY":           "Berlin",
			"TYPE_ID":        "1",
			"ENTITY_TYPE_ID": 3,
			"ENTITY_ID":      "$result[CUSTOMER_abc]",
		}, calls[1].Params["fields"])
	})

	t.Run("update uses the record id", func(t *testing.T) {
		calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(addressFields(), record, WriteTarget{RecordID: 5, CallID: "CUSTOMER_abc"})
		require.NoError(t, err)
		require.Len(t, calls, 2)

		assert.Equal(t, "crm.address.update", calls[1].Method)
		assert.Equal(t, int64(5), calls[1].Params["fields"].(map[string]any)["ENTITY_ID"])
	})

	t.Run("foreign owner is rejected", func(t *testing.T) {
		fields := addressFields()
		fields[0] = baseView("SMART_PROCESS")
		_, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(fields, record, WriteTarget{CallID: "c"})
		assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeUnsupportedEntity)
	})
}

func TestCompileWriteBatch_Unmatched(t *testing.T) {
	record := customerRecord()
	record[HasUnmatchedKey] = true
	record["COMMENTS"] = "call after 5"
	record["SOURCE_ID"] = "WEB"

	calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(customerFields(), record, WriteTarget{
		RecordID:  5,
		CallID:    "c",
		Unmatched: UnmatchedPolicy{Deny: []string{"SOURCE_ID"}},
	})
	require.NoError(t, err)

	fields := calls[0].Params["fields"].(map[string]any)
	assert.Equal(t, "call after 5", fields["COMMENTS"])
	assert.NotContains(t, fields, "SOURCE_ID")
	assert.NotContains(t, fields, "externalId")
	assert.NotContains(t, fields, HasUnmatchedKey)
}

func TestCompileWriteBatch_UnmatchedFieldKeepsItsProperty(t *testing.T) {
	fields := append(customerFields(), view(120, "COMMENTS", "COMMENTS", "string", nil))
	record := customerRecord()
	record[HasUnmatchedKey] = true
	record["COMMENTS"] = "call after 5"

	calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(fields, record, WriteTarget{RecordID: 5, CallID: "c"})
	require.NoError(t, err)

	payload := calls[0].Params["fields"].(map[string]any)
	assert.Equal(t, "call after 5", payload["COMMENTS"])
	assert.NotContains(t, payload, "externalId")
	assert.NotContains(t, payload, "person")
}

func TestCompileWriteBatch_MissingBase(t *testing.T) {
	_, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(customerFields()[1:], customerRecord(), WriteTarget{CallID: "c"})
	assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeMissingBaseMatch)
}

func TestWrapValue(t *testing.T) {
	opts := ValueOptions{Location: plusOne(), DefaultPhoneCode: "+49"}
	text := view(1, "note", "note", "string", &models.Match{Entity: "CONTACT", Code: "COMMENTS"})
	flagField := view(2, "smoker", "smoker", "boolean", &models.Match{Entity: "CONTACT", Code: "UF_CRM_SMOKER"})
	date := view(3, "birthDate", "birthDate", "date", &models.Match{Entity: "CONTACT", Code: "BIRTHDATE"})
	stamp := view(4, "lastSync", "lastSync", "datetime", &models.Match{Entity: "CONTACT", Code: "UF_CRM_SYNC"})
	money := view(5, "amount", "amount", "money", &models.Match{Entity: "CONTACT", Code: "OPPORTUNITY"})
	chf := view(6, "amount", "amount", "money", &models.Match{Entity: "CONTACT", Code: "OPPORTUNITY", ValueType: "chf"})
	phone := view(7, "mobile", "mobile", "string", &models.Match{
		Entity:     "CONTACT",
		Code:       "PHONE",
		ValueType:  "MOBILE",
		PhoneCodes: []string{"+49", "+41"},
	})

	cases := []struct {
		name     string
		field    models.FieldView
		existing any
		value    any
		want     any
	}{
		{"bool true", text, nil, true, "Y"},
		{"bool false", flagField, nil, false, "N"},
		{"true string on boolean field", flagField, nil, "true", "Y"},
		{"true string on text field", text, nil, "true", "true"},
		{"date", date, nil, "1985-04-12", "1985-04-12"},
		{"datetime in tenant offset", stamp, nil, "2024-03-01T10:00:00Z", "2024-03-01T11:00:00+01:00"},
		{"invalid date", date, nil, "someday", nil},
		{"money float", money, nil, 1234.5, "1234.50|EUR"},
		{"money decimal comma", money, nil, "99,9", "99.90|EUR"},
		{"money currency", chf, nil, "10", "10.00|CHF"},
		{"money encoded", money, nil, "5|USD", "5|USD"},
		{"money invalid", money, nil, "lots", nil},
		{"text joins", text, "first", "second", "first, second"},
		{"text without existing", text, nil, "second", "second"},
		{"phone normalized", phone, nil, "0176 555", []any{map[string]any{"VALUE": "+49176555", "VALUE_TYPE": "MOBILE"}}},
		{
			"phone appends",
			phone,
			[]any{map[string]any{"VALUE": "+4930", "VALUE_TYPE": "WORK"}},
			"+41765550000",
			[]any{
				map[string]any{"VALUE": "+4930", "VALUE_TYPE": "WORK"},
				map[string]any{"VALUE": "+41765550000", "VALUE_TYPE": "MOBILE"},
			},
		},
		{"empty phone keeps existing", phone, "kept", "", "kept"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, WrapValue(tc.field, tc.existing, tc.value, opts))
		})
	}
}

func TestWriteThenRead(t *testing.T) {
	fields := customerFields()
	record := customerRecord()

	calls, err := NewCompiler(crm.NewRegistry()).CompileWriteBatch(fields, record, WriteTarget{
		ValueOptions: ValueOptions{Location: plusOne()},
		CallID:       "CUSTOMER_rt",
	})
	require.NoError(t, err)
	require.Len(t, calls, 1)

	stored := map[string]any{"ID": "5"}
	for k, v := range calls[0].Params["fields"].(map[string]any) {
		stored[k] = v
	}

	parsed, err := newTestParser().Parse(context.Background(), fields, map[string]any{"CONTACT": stored}, nil)
	require.NoError(t, err)
	assert.Equal(t, record, parsed.Data)
}
