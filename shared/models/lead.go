package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadCategory is the lifecycle state of a lead. The integer codes are also
// the wire format of the bulk ingestion feed.
type LeadCategory int16

const (
	CategoryUnconverted LeadCategory = 1
	CategoryNew         LeadCategory = 2
	CategoryContacted   LeadCategory = 3
	CategoryConverted   LeadCategory = 4
)

// Valid reports whether c is one of the known categories.
func (c LeadCategory) Valid() bool {
	return c >= CategoryUnconverted && c <= CategoryConverted
}

func (c LeadCategory) String() string {
	switch c {
	case CategoryUnconverted:
		return "unconverted"
	case CategoryNew:
		return "new"
	case CategoryContacted:
		return "contacted"
	case CategoryConverted:
		return "converted"
	}
	return "unknown"
}

// Lead age bounds. Enforced only when an age is supplied.
const (
	LeadMinAge = 18
	LeadMaxAge = 45
)

// Lead is a prospective customer owned by an agent within an organization.
// Version guards concurrent category transitions (optimistic locking).
type Lead struct {
	ID             uuid.UUID    `json:"id" gorm:"type:uuid;primary_key"`
	AgentID        uuid.UUID    `json:"agent_id" gorm:"type:uuid;index;not null"`
	OrganizationID uuid.UUID    `json:"organization_id" gorm:"type:uuid;not null;uniqueIndex:idx_leads_org_email"`
	FirstName      string       `json:"first_name" gorm:"not null"`
	LastName       string       `json:"last_name" gorm:"not null"`
	Email          string       `json:"email" gorm:"not null;uniqueIndex:idx_leads_org_email"`
	PhoneNumber    string       `json:"phone_number,omitempty"`
	Address        string       `json:"address,omitempty"`
	Age            *int         `json:"age,omitempty"`
	Category       LeadCategory `json:"category" gorm:"not null;default:2"`
	Version        int64        `json:"-" gorm:"not null;default:0"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"modified_at"`

	Agent        *Agent        `json:"agent,omitempty" gorm:"foreignKey:AgentID"`
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
}

// TableName returns the table name for the Lead model
func (Lead) TableName() string {
	return "leads"
}

// BeforeCreate assigns the id before insert.
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// FullName returns the display name for the lead.
func (l *Lead) FullName() string {
	return l.FirstName + " " + l.LastName
}

// Validate checks field-level constraints that do not need storage access.
func (l *Lead) Validate() error {
	if l.FirstName == "" || l.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if l.Email == "" {
		return fmt.Errorf("email is required")
	}
	if l.Age != nil && (*l.Age < LeadMinAge || *l.Age > LeadMaxAge) {
		return fmt.Errorf("age must be between %d and %d", LeadMinAge, LeadMaxAge)
	}
	if !l.Category.Valid() {
		return fmt.Errorf("unknown lead category %d", l.Category)
	}
	return nil
}
