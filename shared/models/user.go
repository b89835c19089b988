package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of identities a user can hold. A user has exactly
// one role and exactly one matching profile row (Admin, Agent or Customer);
// the pair is resolved once at login into a Principal.
type Role int16

const (
	RoleAdmin    Role = 1
	RoleAgent    Role = 2
	RoleCustomer Role = 3
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r >= RoleAdmin && r <= RoleCustomer
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleAgent:
		return "agent"
	case RoleCustomer:
		return "customer"
	}
	return "unknown"
}

// User is a login-capable account. Customers get one provisioned
// automatically when their lead converts.
type User struct {
	ID           uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	FirstName    string         `json:"first_name" gorm:"not null"`
	LastName     string         `json:"last_name" gorm:"not null"`
	Username     string         `json:"username" gorm:"uniqueIndex;not null"`
	Email        string         `json:"email" gorm:"index"`
	PasswordHash string         `json:"-" gorm:"not null"`
	Role         Role           `json:"role" gorm:"not null;default:2"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	DateOfBirth  *time.Time     `json:"date_of_birth,omitempty"`
	Address      string         `json:"address,omitempty"`
	PhoneNumber  string         `json:"phone_number,omitempty"`
	PhotoURL     string         `json:"photo_url,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at" gorm:"index"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// FullName returns the display name for the user.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// BeforeCreate assigns the id before insert.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Admin is the single administrator profile of an organization.
type Admin struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	OrganizationID uuid.UUID `json:"organization_id" gorm:"type:uuid;uniqueIndex;not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	User         *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}

// TableName returns the table name for the Admin model
func (Admin) TableName() string {
	return "admins"
}

// BeforeCreate assigns the id before insert.
func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// Agent is a sales-agent profile. Agents own leads and the customers those
// leads convert into.
type Agent struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	UserID         uuid.UUID  `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	OrganizationID uuid.UUID  `json:"organization_id" gorm:"type:uuid;index;not null"`
	HireDate       *time.Time `json:"hire_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	User         *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
	Leads        []Lead        `json:"leads,omitempty" gorm:"foreignKey:AgentID"`
}

// TableName returns the table name for the Agent model
func (Agent) TableName() string {
	return "agents"
}

// BeforeCreate assigns the id before insert.
func (a *Agent) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
