package matching

import (
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/vukmarkovic/Europace-sub000/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func view(id int64, code, propertyPath, typ string, match *models.Match) models.FieldView {
	return models.FieldView{
		Field: models.Field{
			ID:           id,
			Code:         code,
			Entity:       "CUSTOMER",
			PropertyPath: propertyPath,
			Type:         typ,
			Sort:         int(id),
		},
		Match: match,
	}
}

func baseView(tag string) models.FieldView {
	v := view(100, "id", "externalId", "string", &models.Match{Entity: tag, Code: "ID"})
	v.Base = true
	v.Default = tag
	return v
}

// customerFields is a contact-based group covering plain, typed, date, boolean,
// linked and unmatched fields.
func customerFields() []models.FieldView {
	birth := view(104, "birthDate", "person.birthDate", "date", &models.Match{Entity: "CONTACT", Code: "BIRTHDATE"})
	birth.Default = "1970-01-01"

	smoker := view(111, "smoker", "person.smoker", "boolean", &models.Match{Entity: "CONTACT", Code: "UF_CRM_SMOKER"})

	nationality := view(110, "nationality", "person.nationality", "string", nil)
	nationality.Default = "DE"

	return []models.FieldView{
		baseView("CONTACT"),
		view(102, "firstName", "person.firstName", "string", &models.Match{Entity: "CONTACT", Code: "NAME"}),
		view(103, "lastName", "person.lastName", "string", &models.Match{Entity: "CONTACT", Code: "LAST_NAME"}),
		birth,
		view(105, "email", "contact.email", "string", &models.Match{Entity: "CONTACT", Code: "EMAIL", ValueType: "WORK"}),
		view(106, "phone", "contact.phone", "string", &models.Match{
			Entity:           "CONTACT",
			Code:             "PHONE",
			ValueType:        "WORK",
			PhoneCodes:       []string{"+49", "+41"},
			DefaultPhoneCode: "+49",
		}),
		nationality,
		smoker,
	}
}

func timeIn(loc *time.Location) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
}

func jsonUnmarshal(data string, v any) error {
	return json.Unmarshal([]byte(data), v)
}
