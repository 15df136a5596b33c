package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

type fakeFields map[string][]models.FieldView

func (f fakeFields) LoadFields(_ context.Context, _, entity string) ([]models.FieldView, error) {
	fields, ok := f[entity]
	if !ok {
		return nil, matchErrors.NewNotFoundError("no fields for %s", entity)
	}
	return fields, nil
}

type fakeTransport struct {
	batches [][]crm.Call
	singles []crm.Call

	batch  func(calls []crm.Call) (crm.BatchResult, error)
	single func(call crm.Call) (crm.Result, error)
	list   func(call crm.Call) ([]any, error)
}

func (f *fakeTransport) ExecuteBatch(_ context.Context, _ string, calls []crm.Call) (crm.BatchResult, error) {
	f.batches = append(f.batches, calls)
	if f.batch == nil {
		return crm.BatchResult{Result: map[string]any{}}, nil
	}
	return f.batch(calls)
}

func (f *fakeTransport) ExecuteSingle(_ context.Context, _ string, call crm.Call) (crm.Result, error) {
	f.singles = append(f.singles, call)
	if f.single == nil {
		return crm.Result{}, errors.New("not configured")
	}
	return f.single(call)
}

func (f *fakeTransport) ListCall(_ context.Context, _ string, call crm.Call) ([]any, error) {
	if f.list == nil {
		return nil, errors.New("not configured")
	}
	return f.list(call)
}

func newTestMatcher(t *testing.T, fields fakeFields, transport *fakeTransport) *Matcher {
	t.Helper()
	m, err := NewMatcher(fields, transport, crm.NewRegistry(), testLogger(), Config{
		DefaultUTCOffset: "+01:00",
		DefaultPhoneCode: "+49",
	})
	require.NoError(t, err)
	return m
}

func TestParseUTCOffset(t *testing.T) {
	for in, seconds := range map[string]int{"+01:00": 3600, "-0530": -19800, "+02": 7200, "": 0} {
		loc, err := ParseUTCOffset(in)
		require.NoError(t, err, in)
		_, offset := timeIn(loc).Zone()
		assert.Equal(t, seconds, offset, in)
	}

	_, err := ParseUTCOffset("Europe/Berlin")
	assert.Error(t, err)
}

func TestMatcher_PrepareData(t *testing.T) {
	employer := view(109, "employer", "job.employer", "string", &models.Match{Entity: "COMPANY", Code: "TITLE"})
	fields := fakeFields{"CUSTOMER": append(customerFields(), employer)}

	transport := &fakeTransport{batch: func(calls []crm.Call) (crm.BatchResult, error) {
		return crm.BatchResult{Result: map[string]any{
			"CONTACT": map[string]any{"ID": "5", "NAME": "Anna", "COMPANY_ID": "8"},
			"COMPANY": map[string]any{"ID": "8", "TITLE": "ACME GmbH"},
		}}, nil
	}}

	record, err := newTestMatcher(t, fields, transport).PrepareData(context.Background(), "tenant-1", "CUSTOMER", crm.Filter{ID: 5}, nil)
	require.NoError(t, err)

	require.Len(t, transport.batches, 1)
	assert.Len(t, transport.batches[0], 2)
	assert.Equal(t, "5", record.Data["externalId"])
	assert.Equal(t, "Anna", record.Data["person"].(map[string]any)["firstName"])
	assert.Equal(t, "ACME GmbH", record.Data["job"].(map[string]any)["employer"])
}

func TestMatcher_PrepareData_Errors(t *testing.T) {
	fields := fakeFields{"CUSTOMER": customerFields()}

	t.Run("not found", func(t *testing.T) {
		transport := &fakeTransport{batch: func([]crm.Call) (crm.BatchResult, error) {
			return crm.BatchResult{
				Result: map[string]any{},
				Errors: map[string]any{"CONTACT": map[string]any{"error": "Not found"}},
			}, nil
		}}
		_, err := newTestMatcher(t, fields, transport).PrepareData(context.Background(), "t", "CUSTOMER", crm.Filter{ID: 5}, nil)
		assert.True(t, matchErrors.IsKind(err, matchErrors.KindNotFound))
	})

	t.Run("transport failure", func(t *testing.T) {
		transport := &fakeTransport{batch: func([]crm.Call) (crm.BatchResult, error) {
			return crm.BatchResult{}, errors.New("connection reset")
		}}
		_, err := newTestMatcher(t, fields, transport).PrepareData(context.Background(), "t", "CUSTOMER", crm.Filter{ID: 5}, nil)
		assert.True(t, matchErrors.IsKind(err, matchErrors.KindIntegration))
	})

	t.Run("access denied passes through", func(t *testing.T) {
		transport := &fakeTransport{batch: func([]crm.Call) (crm.BatchResult, error) {
			return crm.BatchResult{}, matchErrors.NewAccessDeniedError(errors.New("401"))
		}}
		_, err := newTestMatcher(t, fields, transport).PrepareData(context.Background(), "t", "CUSTOMER", crm.Filter{ID: 5}, nil)
		assert.True(t, matchErrors.IsKind(err, matchErrors.KindAccessDenied))
	})

	t.Run("missing base match", func(t *testing.T) {
		broken := customerFields()
		broken[0].Match = nil
		transport := &fakeTransport{}
		_, err := newTestMatcher(t, fakeFields{"CUSTOMER": broken}, transport).PrepareData(context.Background(), "t", "CUSTOMER", crm.Filter{ID: 5}, nil)
		assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeMissingBaseMatch)
		assert.Empty(t, transport.batches)
	})
}

func TestMatcher_PrepareList(t *testing.T) {
	transport := &fakeTransport{list: func(call crm.Call) ([]any, error) {
		assert.Equal(t, "crm.contact.list", call.Method)
		return []any{
			map[string]any{"ID": "1", "NAME": "Anna"},
			map[string]any{"ID": "2", "NAME": "Ben"},
		}, nil
	}}

	records, err := newTestMatcher(t, fakeFields{"CUSTOMER": customerFields()}, transport).
		PrepareList(context.Background(), "t", "CUSTOMER", crm.Filter{Filter: map[string]any{"TYPE_ID": "CLIENT"}}, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Ben", records[1].Data["person"].(map[string]any)["firstName"])
	assert.Empty(t, transport.batches)
}

func TestMatcher_PrepareListWithLinkedData(t *testing.T) {
	transport := &fakeTransport{
		list: func(crm.Call) ([]any, error) {
			return []any{map[string]any{"ID": "1"}, map[string]any{"ID": "2"}}, nil
		},
		batch: func(calls []crm.Call) (crm.BatchResult, error) {
			if calls[0].Params["id"] == "2" {
				return crm.BatchResult{Result: map[string]any{}}, nil
			}
			return crm.BatchResult{Result: map[string]any{
				"CONTACT": map[string]any{"ID": "1", "NAME": "Anna"},
			}}, nil
		},
	}

	records, err := newTestMatcher(t, fakeFields{"CUSTOMER": customerFields()}, transport).
		PrepareListWithLinkedData(context.Background(), "t", "CUSTOMER", crm.Filter{}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, transport.batches, 2)
	assert.Equal(t, "1", records[0].Data["externalId"])
}

func savingFields() []models.FieldView {
	salutation := view(101, "salutation", "person.salutation", "enumeration", &models.Match{Entity: "CONTACT", Code: "UF_CRM_SALUTATION"})
	lastSync := view(210, "lastSync", "meta.lastSync", "datetime", &models.Match{Entity: "CONTACT", Code: "UF_CRM_SYNC"})
	return append(customerFields(), salutation, lastSync)
}

func TestMatcher_SaveData(t *testing.T) {
	transport := &fakeTransport{
		single: func(call crm.Call) (crm.Result, error) {
			assert.Equal(t, "user.current", call.Method)
			return crm.Result{Result: map[string]any{"ID": "1", "TIME_ZONE_OFFSET": "7200"}}, nil
		},
		batch: func(calls []crm.Call) (crm.BatchResult, error) {
			if calls[0].ID == "CUSTOMER_salutation" {
				return crm.BatchResult{Result: map[string]any{
					"CUSTOMER_salutation": map[string]any{
						"UF_CRM_SALUTATION": map[string]any{"items": []any{
							map[string]any{"ID": "45", "VALUE": "Herr"},
							map[string]any{"ID": "46", "VALUE": "Frau"},
						}},
					},
				}}, nil
			}
			return crm.BatchResult{Result: map[string]any{calls[0].ID: float64(77)}}, nil
		},
	}

	record := map[string]any{
		"ref": "r1",
		"person": map[string]any{
			"firstName":  "Anna",
			"salutation": "Frau",
		},
		"meta": map[string]any{"lastSync": "2024-03-01T10:00:00Z"},
	}

	result, err := newTestMatcher(t, fakeFields{"CUSTOMER": savingFields()}, transport).SaveData(context.Background(), "t",
		SaveRequest{"CUSTOMER": {0: Records{record}}},
		SaveOptions{CallIDField: "ref"},
	)
	require.NoError(t, err)

	require.Len(t, transport.batches, 2)
	write := transport.batches[1]
	require.Len(t, write, 1)
	assert.Equal(t, "CUSTOMER_r1", write[0].ID)
	assert.Equal(t, "crm.contact.add", write[0].Method)

	fields := write[0].Params["fields"].(map[string]any)
	assert.Equal(t, "Anna", fields["NAME"])
	assert.Equal(t, "46", fields["UF_CRM_SALUTATION"])
	assert.Equal(t, "2024-03-01T12:00:00+02:00", fields["UF_CRM_SYNC"])

	assert.Equal(t, "Frau", record["person"].(map[string]any)["salutation"], "caller record is not modified")
	assert.Equal(t, SavedCall{Entity: "CUSTOMER", RecordID: 0}, result.Calls["CUSTOMER_r1"])
	assert.Equal(t, float64(77), result.Result["CUSTOMER_r1"])
}

func TestMatcher_SaveData_DefaultOffset(t *testing.T) {
	transport := &fakeTransport{}
	record := map[string]any{"meta": map[string]any{"lastSync": "2024-03-01T10:00:00Z"}}

	result, err := newTestMatcher(t, fakeFields{"CUSTOMER": savingFields()}, transport).SaveData(context.Background(), "t",
		SaveRequest{"CUSTOMER": {5: Records{record}}}, SaveOptions{})
	require.NoError(t, err)

	require.Len(t, transport.batches, 1)
	call := transport.batches[0][0]
	assert.Equal(t, "crm.contact.update", call.Method)
	assert.Equal(t, "2024-03-01T11:00:00+01:00", call.Params["fields"].(map[string]any)["UF_CRM_SYNC"])
	assert.Len(t, result.Calls, 1)
}

func TestMatcher_SaveData_DuplicateCallID(t *testing.T) {
	transport := &fakeTransport{}
	first := map[string]any{"ref": "same", "person": map[string]any{"firstName": "Anna"}}
	second := map[string]any{"ref": "same", "person": map[string]any{"firstName": "Ben"}}

	_, err := newTestMatcher(t, fakeFields{"CUSTOMER": savingFields()}, transport).SaveData(context.Background(), "t",
		SaveRequest{"CUSTOMER": {0: Records{first}, 7: Records{second}}},
		SaveOptions{CallIDField: "ref"},
	)
	assertCode(t, err, matchErrors.KindBadRequest, matchErrors.CodeDuplicateCallID)
	assert.Empty(t, transport.batches)
}

func TestMatcher_SaveData_SameCallIDAcrossEntities(t *testing.T) {
	transport := &fakeTransport{}
	record := map[string]any{"ref": "same"}

	result, err := newTestMatcher(t, fakeFields{"CUSTOMER": savingFields(), "PARTNER": savingFields()}, transport).SaveData(context.Background(), "t",
		SaveRequest{"CUSTOMER": {5: Records{record}}, "PARTNER": {6: Records{record}}},
		SaveOptions{CallIDField: "ref"},
	)
	require.NoError(t, err)
	assert.Contains(t, result.Calls, "CUSTOMER_same")
	assert.Contains(t, result.Calls, "PARTNER_same")
}

type fakeAuths map[string]models.Auth

func (f fakeAuths) Get(_ context.Context, id string) (models.Auth, error) {
	auth, ok := f[id]
	if !ok {
		return models.Auth{}, matchErrors.NewNotFoundError("tenant %s is not installed", id)
	}
	return auth, nil
}

func TestMatcher_SaveData_StoredTimezone(t *testing.T) {
	record := map[string]any{"meta": map[string]any{"lastSync": "2024-03-01T10:00:00Z"}}
	save := func(auths fakeAuths) string {
		transport := &fakeTransport{}
		m := newTestMatcher(t, fakeFields{"CUSTOMER": savingFields()}, transport).WithAuths(auths)
		_, err := m.SaveData(context.Background(), "t", SaveRequest{"CUSTOMER": {5: Records{record}}}, SaveOptions{})
		require.NoError(t, err)
		return transport.batches[0][0].Params["fields"].(map[string]any)["UF_CRM_SYNC"].(string)
	}

	assert.Equal(t, "2024-03-01T12:00:00+02:00", save(fakeAuths{"t": {ID: "t", Timezone: "+02:00"}}))
	assert.Equal(t, "2024-03-01T11:00:00+01:00", save(fakeAuths{"t": {ID: "t"}}))
	assert.Equal(t, "2024-03-01T11:00:00+01:00", save(fakeAuths{"t": {ID: "t", Timezone: "somewhere"}}))
	assert.Equal(t, "2024-03-01T11:00:00+01:00", save(fakeAuths{}))
}

func TestMatcher_SaveData_Empty(t *testing.T) {
	transport := &fakeTransport{}
	result, err := newTestMatcher(t, fakeFields{}, transport).SaveData(context.Background(), "t", SaveRequest{}, SaveOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Calls)
	assert.Empty(t, transport.batches)
}

func TestMatcher_SaveData_FieldSubset(t *testing.T) {
	transport := &fakeTransport{}
	record := customerRecord()

	_, err := newTestMatcher(t, fakeFields{"CUSTOMER": customerFields()}, transport).SaveData(context.Background(), "t",
		SaveRequest{"CUSTOMER": {5: Records{record}}}, SaveOptions{Fields: []string{"firstName"}})
	require.NoError(t, err)

	fields := transport.batches[0][0].Params["fields"].(map[string]any)
	assert.Equal(t, map[string]any{"NAME": "Anna"}, fields)
}

func TestRecords_UnmarshalJSON(t *testing.T) {
	var req SaveRequest
	require.NoError(t, jsonUnmarshal(`{"CUSTOMER": {"0": {"a": 1}, "5": [{"b": 2}, {"c": 3}]}}`, &req))

	assert.Len(t, req["CUSTOMER"][0], 1)
	assert.Len(t, req["CUSTOMER"][5], 2)
}

func TestMatcher_Transform(t *testing.T) {
	record, err := newTestMatcher(t, fakeFields{"CUSTOMER": customerFields()}, &fakeTransport{}).
		Transform(context.Background(), "t", "CUSTOMER", map[string]any{"ID": "5", "NAME": "Anna"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Anna", record.Data["person"].(map[string]any)["firstName"])
}

func TestMatcher_MatchData(t *testing.T) {
	bank := view(113, "bank", "bank.name", "string", &models.Match{Entity: "CONTACT", Code: "UF_CRM_BANK", ChildType: "LIST", ChildID: "31", ChildCode: "NAME"})
	fields := fakeFields{"CUSTOMER": append(customerFields(), bank)}

	out, err := newTestMatcher(t, fields, &fakeTransport{}).MatchData(context.Background(), "t", "CUSTOMER", map[string]any{
		"person": map[string]any{"firstName": "Anna", "smoker": false},
		"bank":   map[string]any{"name": "Sparkasse"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"NAME":          "Anna",
		"UF_CRM_SMOKER": "N",
		"UF_CRM_BANK":   "Sparkasse",
	}, out)
}

func TestMatcher_CheckParent(t *testing.T) {
	child := view(201, "loan", "loan", "string", &models.Match{Entity: "SMART_PROCESS", ChildID: "1032"})
	contact := view(100, "customer", "customer", "string", &models.Match{Entity: "CONTACT"})
	other := view(100, "parent", "parent", "string", &models.Match{Entity: "SMART_PROCESS", ChildID: "1040"})

	transport := &fakeTransport{single: func(call crm.Call) (crm.Result, error) {
		assert.Equal(t, "crm.item.fields", call.Method)
		assert.Equal(t, "1032", call.Params["entityTypeId"])
		return crm.Result{Result: map[string]any{"fields": map[string]any{
			"contactId": map[string]any{"type": "crm_contact"},
			"title":     map[string]any{"type": "string"},
		}}}, nil
	}}
	m := newTestMatcher(t, fakeFields{}, transport)

	ok, err := m.CheckParent(context.Background(), "t", contact, child)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.CheckParent(context.Background(), "t", other, child)
	require.NoError(t, err)
	assert.False(t, ok)

	list := view(100, "list", "list", "string", &models.Match{Entity: "LIST"})
	_, err = m.CheckParent(context.Background(), "t", list, child)
	assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeUnsupportedEntity)

	_, err = m.CheckParent(context.Background(), "t", view(1, "x", "x", "string", nil), child)
	assertCode(t, err, matchErrors.KindBadRequest, matchErrors.CodeMissingMatch)
}
