package leadflow

import (
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

func TestUsernameCandidate_Format(t *testing.T) {
	pattern := regexp.MustCompile(`^jane\.doe_[a-zA-Z0-9]{3}$`)

	for i := 0; i < 20; i++ {
		candidate := UsernameCandidate("Jane", "Doe")
		assert.Regexp(t, pattern, candidate)
	}
}

func TestUsernameCandidate_SuffixVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[UsernameCandidate("Jane", "Doe")] = true
	}
	// 3 random alphanumeric characters; 50 draws colliding into one value
	// would mean the suffix is not random at all.
	assert.Greater(t, len(seen), 1)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(errors.New(
		`ERROR: duplicate key value violates unique constraint "users_username_key" (SQLSTATE 23505)`)))
	assert.True(t, IsUniqueViolation(errors.New(
		"UNIQUE constraint failed: users.username")))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
}

func TestCreateUserWithCredentials(t *testing.T) {
	db := newTestDB(t)

	var (
		user  *models.User
		creds *Credentials
	)
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		user, creds, err = CreateUserWithCredentials(tx, models.User{
			FirstName: "Ana",
			LastName:  "Ruiz",
			Email:     "ana@lead.test",
			Role:      models.RoleCustomer,
		})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	require.NotNil(t, creds)

	assert.True(t, user.IsActive)
	assert.Equal(t, models.RoleCustomer, user.Role)
	assert.Regexp(t, `^ana\.ruiz_[a-zA-Z0-9]{3}$`, user.Username)
	assert.Equal(t, user.Username, creds.Username)
	assert.Equal(t, "ana@lead.test", creds.Email)
	assert.Equal(t, "Ana Ruiz", creds.Recipient)
	assert.Len(t, creds.Password, generatedPasswordLength)
	assert.True(t, utils.CheckPassword(user.PasswordHash, creds.Password))

	var stored models.User
	require.NoError(t, db.First(&stored, "id = ?", user.ID).Error)
	assert.Equal(t, user.Username, stored.Username)
}
