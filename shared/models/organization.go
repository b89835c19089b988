package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is a tenant. Every admin, agent, lead and customer belongs to
// exactly one organization; cross-organization references are rejected by the
// access policy.
type Organization struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	Name        string         `json:"name" gorm:"uniqueIndex;not null"`
	Email       string         `json:"email" gorm:"uniqueIndex;not null"`
	Address     string         `json:"address,omitempty"`
	PhoneNumber string         `json:"phone_number,omitempty"`
	Website     string         `json:"website,omitempty"`
	LogoURL     string         `json:"logo_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Relationships
	Agents    []Agent    `json:"agents,omitempty" gorm:"foreignKey:OrganizationID"`
	Leads     []Lead     `json:"leads,omitempty" gorm:"foreignKey:OrganizationID"`
	Customers []Customer `json:"customers,omitempty" gorm:"foreignKey:OrganizationID"`
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}

// BeforeCreate assigns the id client side so inserts behave the same on
// every database engine.
func (o *Organization) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
