package leadflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// ErrProvisioning is returned when an account could not be created: username
// collisions exhausted the retry budget or a storage write failed. The
// surrounding transaction rolls back, so a provisioning failure never leaves
// a converted lead without its customer.
var ErrProvisioning = errors.New("account provisioning failed")

// ErrUsernameExhausted is the provisioning failure where every generated
// username candidate collided. Wraps ErrProvisioning.
var ErrUsernameExhausted = fmt.Errorf("%w: username collisions exhausted retry attempts", ErrProvisioning)

const (
	// maxUsernameAttempts bounds username regeneration on collision.
	maxUsernameAttempts = 5
	// generatedPasswordLength matches the legacy credential policy.
	generatedPasswordLength = 10
)

// Credentials are the one-time secrets for a freshly provisioned account.
// They exist only for the duration of a single delivery call and are never
// persisted or published anywhere in plaintext.
type Credentials struct {
	Username  string
	Password  string
	Email     string
	Recipient string
}

// Deliverer is the out-of-band channel that hands generated credentials to
// the new account holder. Implementations must not store the plaintext
// password beyond the single call.
type Deliverer interface {
	DeliverCredentials(ctx context.Context, creds Credentials) error
}

// usernameSuffix generates the random disambiguating suffix. Package-level
// so tests can pin the sequence.
var usernameSuffix = func() string { return utils.RandomString(3) }

// UsernameCandidate builds "first.last_xyz" with a random 3-character
// disambiguating suffix.
func UsernameCandidate(firstName, lastName string) string {
	return fmt.Sprintf("%s.%s_%s",
		strings.ToLower(firstName), strings.ToLower(lastName), usernameSuffix())
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure.
func IsUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(err.Error(), "duplicate key value") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUserWithCredentials creates a login account with a generated
// username and password inside tx. template supplies the profile fields
// (name, email, phone, address, role). The username pre-check is advisory
// only; a uniqueness violation at insert time is treated as a collision and
// retried with a fresh suffix. Each insert attempt runs under a savepoint —
// without it a duplicate-key failure would abort the whole surrounding
// transaction on Postgres and every later statement in it would fail.
func CreateUserWithCredentials(tx *gorm.DB, template models.User) (*models.User, *Credentials, error) {
	password := utils.RandomString(generatedPasswordLength)
	passwordHash, err := utils.HashPassword(password)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	user := template
	user.PasswordHash = passwordHash
	user.IsActive = true

	created := false
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		candidate := UsernameCandidate(user.FirstName, user.LastName)

		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
		}
		if count > 0 {
			continue
		}

		user.Username = candidate
		insertErr := tx.Transaction(func(stx *gorm.DB) error {
			return stx.Create(&user).Error
		})
		if insertErr != nil {
			if IsUniqueViolation(insertErr) {
				continue
			}
			return nil, nil, fmt.Errorf("%w: %v", ErrProvisioning, insertErr)
		}
		created = true
		break
	}
	if !created {
		return nil, nil, ErrUsernameExhausted
	}

	creds := &Credentials{
		Username:  user.Username,
		Password:  password,
		Email:     user.Email,
		Recipient: user.FullName(),
	}
	return &user, creds, nil
}

// provisionCustomer materializes the customer and user account for a
// converted lead inside the caller's transaction. It is idempotent: when a
// customer already references the lead it returns that customer and no
// credentials.
func provisionCustomer(tx *gorm.DB, lead *models.Lead) (*models.Customer, *Credentials, error) {
	var existing models.Customer
	err := tx.Where("lead_id = ?", lead.ID).First(&existing).Error
	if err == nil {
		return &existing, nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	user, creds, err := CreateUserWithCredentials(tx, models.User{
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		Email:       lead.Email,
		Address:     lead.Address,
		PhoneNumber: lead.PhoneNumber,
		Role:        models.RoleCustomer,
	})
	if err != nil {
		return nil, nil, err
	}

	customer := models.Customer{
		UserID:         user.ID,
		OrganizationID: lead.OrganizationID,
		LeadID:         &lead.ID,
		AgentID:        &lead.AgentID,
		TotalPurchases: decimal.Zero,
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrProvisioning, err)
	}

	return &customer, creds, nil
}
