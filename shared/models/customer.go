package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is a converted lead. Exactly one customer ever exists per lead;
// the provisioner creates it together with the customer's user account.
type Customer struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	UserID            uuid.UUID       `json:"user_id" gorm:"type:uuid;uniqueIndex;not null"`
	OrganizationID    uuid.UUID       `json:"organization_id" gorm:"type:uuid;index;not null"`
	LeadID            *uuid.UUID      `json:"lead_id,omitempty" gorm:"type:uuid;uniqueIndex"`
	AgentID           *uuid.UUID      `json:"agent_id,omitempty" gorm:"type:uuid;index"`
	TotalPurchases    decimal.Decimal `json:"total_purchases" gorm:"type:numeric(10,2);not null;default:0"`
	FirstPurchaseDate *time.Time      `json:"first_purchase_date,omitempty"`
	LastPurchaseDate  *time.Time      `json:"last_purchase_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	User         *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Organization *Organization `json:"organization,omitempty" gorm:"foreignKey:OrganizationID"`
	Lead         *Lead         `json:"lead,omitempty" gorm:"foreignKey:LeadID"`
}

// TableName returns the table name for the Customer model
func (Customer) TableName() string {
	return "customers"
}

// BeforeCreate assigns the id before insert.
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
