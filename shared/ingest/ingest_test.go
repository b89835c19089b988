package ingest

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadstack/go-crm-system/shared/models"
)

func validRecord() LeadRecord {
	return LeadRecord{
		Agent:        uuid.New(),
		Organization: uuid.New(),
		Email:        "prospect@example.com",
		FirstName:    "Pat",
		LastName:     "Smith",
	}
}

func TestLeadRecord_Validate(t *testing.T) {
	r := validRecord()
	assert.NoError(t, r.Validate())
}

func TestLeadRecord_Validate_MissingKeys(t *testing.T) {
	r := validRecord()
	r.Email = ""
	assert.ErrorContains(t, r.Validate(), "email")

	r = validRecord()
	r.Agent = uuid.Nil
	assert.ErrorContains(t, r.Validate(), "agent")

	r = validRecord()
	r.Organization = uuid.Nil
	assert.ErrorContains(t, r.Validate(), "organization")
}

func TestLeadRecord_Validate_AgeBounds(t *testing.T) {
	r := validRecord()

	tooYoung := models.LeadMinAge - 1
	r.Age = &tooYoung
	assert.Error(t, r.Validate())

	tooOld := models.LeadMaxAge + 1
	r.Age = &tooOld
	assert.Error(t, r.Validate())

	ok := models.LeadMinAge
	r.Age = &ok
	assert.NoError(t, r.Validate())
}

func TestLeadRecord_Validate_Category(t *testing.T) {
	r := validRecord()

	bad := int16(99)
	r.Category = &bad
	assert.ErrorContains(t, r.Validate(), "category")

	good := int16(models.CategoryContacted)
	r.Category = &good
	assert.NoError(t, r.Validate())
}

func TestLeadRecord_CategoryDefaultsToNew(t *testing.T) {
	r := validRecord()
	assert.Equal(t, models.CategoryNew, r.category())

	code := int16(models.CategoryUnconverted)
	r.Category = &code
	assert.Equal(t, models.CategoryUnconverted, r.category())
}

func TestLeadRecord_WireFormat(t *testing.T) {
	feed := `[{
		"agent": "550e8400-e29b-41d4-a716-446655440000",
		"organization": "123e4567-e89b-12d3-a456-426614174000",
		"email": "prospect@example.com",
		"first_name": "Pat",
		"last_name": "Smith",
		"age": 30,
		"category": 3
	}]`

	var records []LeadRecord
	require.NoError(t, json.Unmarshal([]byte(feed), &records))
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "prospect@example.com", r.Email)
	assert.Equal(t, 30, *r.Age)
	assert.Equal(t, models.CategoryContacted, r.category())
	assert.NoError(t, r.Validate())
}
