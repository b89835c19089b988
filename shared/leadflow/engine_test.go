package leadflow

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: databases are per connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Admin{},
		&models.Agent{},
		&models.Lead{},
		&models.Customer{},
	))
	return db
}

func seedTenant(t *testing.T, db *gorm.DB) (*models.Organization, *models.Agent) {
	t.Helper()

	org := &models.Organization{
		Name:  "Acme " + uuid.NewString()[:8],
		Email: uuid.NewString() + "@acme.test",
	}
	require.NoError(t, db.Create(org).Error)

	user := &models.User{
		FirstName:    "Sam",
		LastName:     "Field",
		Username:     "sam.field_" + uuid.NewString()[:6],
		Email:        "sam@acme.test",
		PasswordHash: "irrelevant",
		Role:         models.RoleAgent,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)

	agent := &models.Agent{UserID: user.ID, OrganizationID: org.ID}
	require.NoError(t, db.Create(agent).Error)
	return org, agent
}

func newLead(t *testing.T, db *gorm.DB, org *models.Organization, agent *models.Agent, category models.LeadCategory) *models.Lead {
	t.Helper()

	lead := &models.Lead{
		AgentID:        agent.ID,
		OrganizationID: org.ID,
		FirstName:      "Pat",
		LastName:       "Lee",
		Email:          uuid.NewString() + "@lead.test",
		Category:       category,
	}
	require.NoError(t, db.Create(lead).Error)
	return lead
}

type capturingDeliverer struct {
	calls []Credentials
	err   error
}

func (d *capturingDeliverer) DeliverCredentials(ctx context.Context, creds Credentials) error {
	d.calls = append(d.calls, creds)
	return d.err
}

func TestEngine_CreateLead_DefaultsToNew(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)

	lead := &models.Lead{
		AgentID:        agent.ID,
		OrganizationID: org.ID,
		FirstName:      "Pat",
		LastName:       "Lee",
		Email:          "pat@lead.test",
	}
	require.NoError(t, engine.CreateLead(context.Background(), lead))
	assert.Equal(t, models.CategoryNew, lead.Category)
	assert.NotEqual(t, uuid.Nil, lead.ID)
}

func TestEngine_CreateLead_RefusesConverted(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)

	lead := &models.Lead{
		AgentID:        agent.ID,
		OrganizationID: org.ID,
		FirstName:      "Pat",
		LastName:       "Lee",
		Email:          "pat@lead.test",
		Category:       models.CategoryConverted,
	}
	err := engine.CreateLead(context.Background(), lead)
	assert.ErrorIs(t, err, ErrInvalidInitialState)
}

func TestEngine_CreateLead_DuplicateEmailInOrganization(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)
	existing := newLead(t, db, org, agent, models.CategoryNew)

	dup := &models.Lead{
		AgentID:        agent.ID,
		OrganizationID: org.ID,
		FirstName:      "Pat",
		LastName:       "Lee",
		Email:          existing.Email,
	}
	err := engine.CreateLead(context.Background(), dup)
	assert.ErrorIs(t, err, ErrDuplicateLead)
}

func TestEngine_Transition_RejectsInvalidTarget(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)
	lead := newLead(t, db, org, agent, models.CategoryNew)

	_, err := engine.Transition(context.Background(), lead, models.CategoryConverted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.CategoryNew, lead.Category)
}

func TestEngine_Transition_SameCategoryIsNoOp(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)
	lead := newLead(t, db, org, agent, models.CategoryContacted)

	customer, err := engine.Transition(context.Background(), lead, models.CategoryContacted)
	require.NoError(t, err)
	assert.Nil(t, customer)
	assert.Equal(t, int64(0), lead.Version)
}

func TestEngine_Transition_ConvertsAndProvisions(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	deliverer := &capturingDeliverer{}
	engine := NewEngine(db, deliverer, nil)
	lead := newLead(t, db, org, agent, models.CategoryContacted)

	customer, err := engine.Transition(context.Background(), lead, models.CategoryConverted)
	require.NoError(t, err)
	require.NotNil(t, customer)

	assert.Equal(t, models.CategoryConverted, lead.Category)
	assert.Equal(t, int64(1), lead.Version)

	var stored models.Lead
	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	assert.Equal(t, models.CategoryConverted, stored.Category)

	require.NotNil(t, customer.LeadID)
	assert.Equal(t, lead.ID, *customer.LeadID)
	require.NotNil(t, customer.AgentID)
	assert.Equal(t, agent.ID, *customer.AgentID)
	assert.Equal(t, org.ID, customer.OrganizationID)
	assert.True(t, customer.TotalPurchases.IsZero())

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", customer.UserID).Error)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, lead.Email, user.Email)

	require.Len(t, deliverer.calls, 1)
	creds := deliverer.calls[0]
	assert.Regexp(t, `^pat\.lee_[a-zA-Z0-9]{3}$`, creds.Username)
	assert.Len(t, creds.Password, 10)
	assert.Equal(t, lead.Email, creds.Email)
	// Only the hash is stored, and it matches the delivered password.
	assert.NotEqual(t, creds.Password, user.PasswordHash)
	assert.True(t, utils.CheckPassword(user.PasswordHash, creds.Password))
}

func TestEngine_Transition_ProvisioningIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	deliverer := &capturingDeliverer{}
	engine := NewEngine(db, deliverer, nil)
	lead := newLead(t, db, org, agent, models.CategoryContacted)

	user := &models.User{
		FirstName:    lead.FirstName,
		LastName:     lead.LastName,
		Username:     "pat.lee_pre",
		Email:        lead.Email,
		PasswordHash: "irrelevant",
		Role:         models.RoleCustomer,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	existing := &models.Customer{
		UserID:         user.ID,
		OrganizationID: org.ID,
		LeadID:         &lead.ID,
		AgentID:        &agent.ID,
		TotalPurchases: decimal.Zero,
	}
	require.NoError(t, db.Create(existing).Error)

	customer, err := engine.Transition(context.Background(), lead, models.CategoryConverted)
	require.NoError(t, err)
	require.NotNil(t, customer)
	assert.Equal(t, existing.ID, customer.ID)

	// No second account, no second credential delivery.
	assert.Empty(t, deliverer.calls)
	var count int64
	require.NoError(t, db.Model(&models.Customer{}).Where("lead_id = ?", lead.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestEngine_Transition_ConcurrentModification(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)
	lead := newLead(t, db, org, agent, models.CategoryContacted)

	// A competing writer commits first.
	require.NoError(t, db.Model(&models.Lead{}).Where("id = ?", lead.ID).
		Update("version", lead.Version+1).Error)

	_, err := engine.Transition(context.Background(), lead, models.CategoryUnconverted)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	var stored models.Lead
	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	assert.Equal(t, models.CategoryContacted, stored.Category)
}

func TestEngine_Transition_ProvisioningFailureRollsBack(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	deliverer := &capturingDeliverer{}
	engine := NewEngine(db, deliverer, nil)
	lead := newLead(t, db, org, agent, models.CategoryContacted)

	// Break the customer store so provisioning cannot succeed.
	require.NoError(t, db.Migrator().DropTable(&models.Customer{}))

	customer, err := engine.Transition(context.Background(), lead, models.CategoryConverted)
	require.ErrorIs(t, err, ErrProvisioning)
	assert.Nil(t, customer)
	assert.Empty(t, deliverer.calls)

	// The category change rolled back with the provisioning failure.
	var stored models.Lead
	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	assert.Equal(t, models.CategoryContacted, stored.Category)
	assert.Equal(t, int64(0), stored.Version)
	assert.Equal(t, models.CategoryContacted, lead.Category)

	var users int64
	require.NoError(t, db.Model(&models.User{}).
		Where("role = ?", models.RoleCustomer).Count(&users).Error)
	assert.Equal(t, int64(0), users)
}

func TestEngine_Transition_RetriesUsernameCollision(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	deliverer := &capturingDeliverer{}
	engine := NewEngine(db, deliverer, nil)
	lead := newLead(t, db, org, agent, models.CategoryContacted)

	// Occupy the first candidate with a soft-deleted account: the advisory
	// pre-check ignores soft-deleted rows, but the unique index does not, so
	// the insert itself collides.
	taken := &models.User{
		FirstName:    "Pat",
		LastName:     "Lee",
		Username:     "pat.lee_aaa",
		Email:        "gone@lead.test",
		PasswordHash: "irrelevant",
		Role:         models.RoleCustomer,
	}
	require.NoError(t, db.Create(taken).Error)
	require.NoError(t, db.Delete(taken).Error)

	suffixes := []string{"aaa", "bbb"}
	idx := 0
	restore := usernameSuffix
	usernameSuffix = func() string {
		s := suffixes[idx%len(suffixes)]
		idx++
		return s
	}
	defer func() { usernameSuffix = restore }()

	customer, err := engine.Transition(context.Background(), lead, models.CategoryConverted)
	require.NoError(t, err)
	require.NotNil(t, customer)

	var user models.User
	require.NoError(t, db.First(&user, "id = ?", customer.UserID).Error)
	assert.Equal(t, "pat.lee_bbb", user.Username)

	require.Len(t, deliverer.calls, 1)
	assert.Equal(t, "pat.lee_bbb", deliverer.calls[0].Username)
}

func TestEngine_UpdateLead_BumpsVersion(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)
	lead := newLead(t, db, org, agent, models.CategoryNew)

	lead.PhoneNumber = "555-0101"
	require.NoError(t, engine.UpdateLead(context.Background(), lead))
	assert.Equal(t, int64(1), lead.Version)

	var stored models.Lead
	require.NoError(t, db.First(&stored, "id = ?", lead.ID).Error)
	assert.Equal(t, "555-0101", stored.PhoneNumber)
	assert.Equal(t, int64(1), stored.Version)
}

func TestEngine_UpdateLead_StaleVersion(t *testing.T) {
	db := newTestDB(t)
	org, agent := seedTenant(t, db)
	engine := NewEngine(db, nil, nil)
	lead := newLead(t, db, org, agent, models.CategoryNew)

	require.NoError(t, db.Model(&models.Lead{}).Where("id = ?", lead.ID).
		Update("version", lead.Version+1).Error)

	lead.FirstName = "Someone"
	err := engine.UpdateLead(context.Background(), lead)
	assert.ErrorIs(t, err, ErrConcurrentModification)
}
