package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vukmarkovic/Europace-sub000/pkg/crm"
	matchErrors "github.com/vukmarkovic/Europace-sub000/pkg/errors"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

func TestCompileReadBatch_LinkedCompany(t *testing.T) {
	fields := []models.FieldView{
		baseView("CONTACT"),
		view(109, "employer", "job.employer", "string", &models.Match{Entity: "COMPANY", Code: "TITLE"}),
	}

	calls, err := NewCompiler(crm.NewRegistry()).CompileReadBatch(fields, crm.Filter{ID: 42})
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, "CONTACT", calls[0].ID)
	assert.Equal(t, "crm.contact.get", calls[0].Method)
	assert.Equal(t, 42, calls[0].Params["id"])

	assert.Equal(t, "COMPANY", calls[1].ID)
	assert.Equal(t, "crm.company.get", calls[1].Method)
	assert.Equal(t, "$result[CONTACT][COMPANY_ID]", calls[1].Params["id"])
}

func TestCompileReadBatch_SharesLinkedCall(t *testing.T) {
	fields := []models.FieldView{
		baseView("CONTACT"),
		view(109, "employer", "job.employer", "string", &models.Match{Entity: "COMPANY", Code: "TITLE"}),
		view(112, "employerPhone", "job.phone", "string", &models.Match{Entity: "COMPANY", Code: "PHONE"}),
	}

	calls, err := NewCompiler(crm.NewRegistry()).CompileReadBatch(fields, crm.Filter{ID: 1})
	require.NoError(t, err)
	assert.Len(t, calls, 2)
}

func TestCompileReadBatch_OnlyBaseFields(t *testing.T) {
	calls, err := NewCompiler(crm.NewRegistry()).CompileReadBatch(customerFields(), crm.Filter{ID: 1})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "crm.contact.get", calls[0].Method)
}

func TestCompileReadBatch_ChildCode(t *testing.T) {
	fields := []models.FieldView{
		baseView("CONTACT"),
		view(113, "bank", "bank.name", "string", &models.Match{
			Entity:    "CONTACT",
			Code:      "UF_CRM_BANK",
			ChildType: "LIST",
			ChildID:   "31",
			ChildCode: "NAME",
		}),
	}

	calls, err := NewCompiler(crm.NewRegistry()).CompileReadBatch(fields, crm.Filter{ID: 1})
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, "UF_CRM_BANK", calls[1].ID)
	assert.Equal(t, "lists.element.get", calls[1].Method)
	assert.Equal(t, "31", calls[1].Params["IBLOCK_ID"])
	assert.Equal(t, "$result[CONTACT][UF_CRM_BANK]", calls[1].Params["ELEMENT_ID"])
}

func TestCompileReadBatch_SmartProcessEnvelope(t *testing.T) {
	base := baseView("SMART_PROCESS")
	base.Match.ChildID = "1032"
	fields := []models.FieldView{
		base,
		view(201, "borrower", "borrower.name", "string", &models.Match{Entity: "CONTACT", Code: "NAME"}),
	}

	calls, err := NewCompiler(crm.NewRegistry()).CompileReadBatch(fields, crm.Filter{ID: 9})
	require.NoError(t, err)
	require.Len(t, calls, 2)

	assert.Equal(t, "crm.item.get", calls[0].Method)
	assert.Equal(t, "1032", calls[0].Params["entityTypeId"])
	assert.Equal(t, "$result[SMART_PROCESS][item][contactId]", calls[1].Params["id"])
}

func TestCompileReadBatch_EnumerationAndDefault(t *testing.T) {
	salutation := view(101, "salutation", "person.salutation", "enumeration", &models.Match{Entity: "CONTACT", Code: "UF_CRM_SALUTATION"})
	advisor := view(116, "advisor", "advisor.id", "user", &models.Match{Entity: "CONTACT", Code: "ASSIGNED_BY_ID", DefaultValue: "7"})
	advisor.LinkType = "USER"

	calls, err := NewCompiler(crm.NewRegistry()).CompileReadBatch([]models.FieldView{baseView("CONTACT"), salutation, advisor}, crm.Filter{ID: 1})
	require.NoError(t, err)
	require.Len(t, calls, 3)

	assert.Equal(t, "UF_CRM_SALUTATION", calls[1].ID)
	assert.Equal(t, "crm.contact.fields", calls[1].Method)

	assert.Equal(t, "advisor_default", calls[2].ID)
	assert.Equal(t, "user.get", calls[2].Method)
	assert.Equal(t, "7", calls[2].Params["ID"])
}

func TestCompileReadBatch_ConfigurationErrors(t *testing.T) {
	compiler := NewCompiler(crm.NewRegistry())

	t.Run("missing base match", func(t *testing.T) {
		base := baseView("CONTACT")
		base.Match = nil
		_, err := compiler.CompileReadBatch([]models.FieldView{base}, crm.Filter{ID: 1})
		assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeMissingBaseMatch)
	})

	t.Run("two base fields", func(t *testing.T) {
		_, err := compiler.CompileReadBatch([]models.FieldView{baseView("CONTACT"), baseView("CONTACT")}, crm.Filter{ID: 1})
		assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeMultipleBaseField)
	})

	t.Run("unknown base entity", func(t *testing.T) {
		_, err := compiler.CompileReadBatch([]models.FieldView{baseView("DEAL")}, crm.Filter{ID: 1})
		assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeUnsupportedEntity)
	})

	t.Run("unsupported default entity", func(t *testing.T) {
		f := view(102, "firstName", "person.firstName", "string", &models.Match{Entity: "CONTACT", Code: "NAME", DefaultValue: "x"})
		_, err := compiler.CompileReadBatch([]models.FieldView{baseView("CONTACT"), f}, crm.Filter{ID: 1})
		assertCode(t, err, matchErrors.KindConfiguration, matchErrors.CodeUnsupportedEntity)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := compiler.CompileReadBatch([]models.FieldView{baseView("CONTACT")}, crm.Filter{})
		assertCode(t, err, matchErrors.KindBadRequest, matchErrors.CodeMissingFilter)
	})
}

func assertCode(t *testing.T, err error, kind matchErrors.Kind, code string) {
	t.Helper()
	var me *matchErrors.MatchingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, kind, me.Kind)
	assert.Equal(t, code, me.Code)
}
