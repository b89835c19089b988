package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/leadstack/go-crm-system/shared/leadflow"
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

func seedAdminPrincipal(t *testing.T, db *gorm.DB) models.Principal {
	t.Helper()

	org := &models.Organization{
		Name:  "Acme " + uuid.NewString()[:8],
		Email: uuid.NewString() + "@acme.test",
	}
	require.NoError(t, db.Create(org).Error)

	user := &models.User{
		FirstName:    "Olga",
		LastName:     "Berg",
		Username:     "olga.berg_" + uuid.NewString()[:6],
		Email:        "olga@acme.test",
		PasswordHash: "irrelevant",
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)

	admin := &models.Admin{UserID: user.ID, OrganizationID: org.ID}
	require.NoError(t, db.Create(admin).Error)

	return models.Principal{
		UserID:         user.ID,
		Username:       user.Username,
		Email:          user.Email,
		Role:           models.RoleAdmin,
		OrganizationID: org.ID,
		AdminID:        &admin.ID,
	}
}

type capturingDeliverer struct {
	calls []leadflow.Credentials
	err   error
}

func (d *capturingDeliverer) DeliverCredentials(ctx context.Context, creds leadflow.Credentials) error {
	d.calls = append(d.calls, creds)
	return d.err
}

func postCreateAgent(t *testing.T, handler gin.HandlerFunc, principal models.Principal, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/agents", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("principal", principal)

	handler(c)
	return rec
}

func TestHandleCreateAgent_ProvisionsAccount(t *testing.T) {
	db := newTestDB(t)
	principal := seedAdminPrincipal(t, db)
	deliverer := &capturingDeliverer{}

	rec := postCreateAgent(t, handleCreateAgent(db, deliverer), principal, CreateAgentRequest{
		FirstName: "Ravi",
		LastName:  "Nair",
		Email:     "ravi@acme.test",
		Phone:     "555-0142",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var agent models.Agent
	require.NoError(t, db.Preload("User").
		Where("organization_id = ?", principal.OrganizationID).First(&agent).Error)
	require.NotNil(t, agent.User)
	assert.Equal(t, models.RoleAgent, agent.User.Role)
	assert.True(t, agent.User.IsActive)
	assert.Equal(t, "ravi@acme.test", agent.User.Email)
	assert.Regexp(t, `^ravi\.nair_[a-zA-Z0-9]{3}$`, agent.User.Username)

	require.Len(t, deliverer.calls, 1)
	creds := deliverer.calls[0]
	assert.Equal(t, agent.User.Username, creds.Username)
	assert.Len(t, creds.Password, 10)
	assert.True(t, utils.CheckPassword(agent.User.PasswordHash, creds.Password))
}

func TestHandleCreateAgent_InvalidBody(t *testing.T) {
	db := newTestDB(t)
	principal := seedAdminPrincipal(t, db)

	rec := postCreateAgent(t, handleCreateAgent(db, &capturingDeliverer{}), principal,
		map[string]string{"first_name": "Ravi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, db.Model(&models.Agent{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestHandleCreateAgent_DeliveryFailureStillCreates(t *testing.T) {
	db := newTestDB(t)
	principal := seedAdminPrincipal(t, db)
	deliverer := &capturingDeliverer{err: assert.AnError}

	rec := postCreateAgent(t, handleCreateAgent(db, deliverer), principal, CreateAgentRequest{
		FirstName: "Mira",
		LastName:  "Sato",
		Email:     "mira@acme.test",
	})

	// Delivery is best effort; the account exists either way.
	assert.Equal(t, http.StatusCreated, rec.Code)
	var count int64
	require.NoError(t, db.Model(&models.Agent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
