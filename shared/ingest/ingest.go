// Package ingest loads bulk lead feeds. A feed is a JSON array of flat
// records referencing existing agents and organizations by id; ingestion is
// idempotent per (email, organization) and reports per-record outcomes
// instead of aborting the batch.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/leadflow"
	"github.com/leadstack/go-crm-system/shared/models"
)

// LeadRecord is one entry of the bulk ingestion feed. Category uses the
// integer wire codes and defaults to New.
type LeadRecord struct {
	Agent        uuid.UUID `json:"agent"`
	Organization uuid.UUID `json:"organization"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Age          *int      `json:"age,omitempty"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	Address      string    `json:"address,omitempty"`
	Category     *int16    `json:"category,omitempty"`
}

// Validate checks the record's own fields, without storage lookups.
func (r *LeadRecord) Validate() error {
	if r.Email == "" {
		return fmt.Errorf("missing key email")
	}
	if r.Agent == uuid.Nil {
		return fmt.Errorf("missing key agent")
	}
	if r.Organization == uuid.Nil {
		return fmt.Errorf("missing key organization")
	}
	if r.Age != nil && (*r.Age < models.LeadMinAge || *r.Age > models.LeadMaxAge) {
		return fmt.Errorf("age must be between %d and %d", models.LeadMinAge, models.LeadMaxAge)
	}
	if r.Category != nil && !models.LeadCategory(*r.Category).Valid() {
		return fmt.Errorf("unknown category code %d", *r.Category)
	}
	return nil
}

// category returns the effective category of the record.
func (r *LeadRecord) category() models.LeadCategory {
	if r.Category == nil {
		return models.CategoryNew
	}
	return models.LeadCategory(*r.Category)
}

// Result is the outcome for a single record, keyed by email.
type Result struct {
	Email  string `json:"email"`
	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Report aggregates a whole batch.
type Report struct {
	Results []Result `json:"results"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
}

// Ingestor runs bulk lead ingestion against the datastore.
type Ingestor struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewIngestor creates an ingestor.
func NewIngestor(db *gorm.DB) *Ingestor {
	return &Ingestor{
		db:  db,
		log: logrus.WithField("component", "ingest"),
	}
}

// Ingest upserts every record of the batch. Each record runs in its own
// transaction; a failing record is reported and skipped, never aborting the
// rest of the batch. Category changes on existing leads are checked against
// the lead state machine.
func (i *Ingestor) Ingest(ctx context.Context, records []LeadRecord) Report {
	report := Report{Results: make([]Result, 0, len(records))}

	for _, record := range records {
		action, err := i.ingestOne(ctx, record)
		if err != nil {
			report.Failed++
			report.Results = append(report.Results, Result{Email: record.Email, Error: err.Error()})
			i.log.WithError(err).WithField("email", record.Email).Warn("Skipping lead record")
			continue
		}
		if action == "created" {
			report.Created++
		} else {
			report.Updated++
		}
		report.Results = append(report.Results, Result{Email: record.Email, Action: action})
	}

	return report
}

func (i *Ingestor) ingestOne(ctx context.Context, record LeadRecord) (string, error) {
	if err := record.Validate(); err != nil {
		return "", err
	}

	action := ""
	err := i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var agent models.Agent
		if err := tx.Where("id = ?", record.Agent).First(&agent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("agent %s does not exist", record.Agent)
			}
			return err
		}

		var org models.Organization
		if err := tx.Where("id = ?", record.Organization).First(&org).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("organization %s does not exist", record.Organization)
			}
			return err
		}

		if agent.OrganizationID != org.ID {
			return fmt.Errorf("agent %s does not belong to organization %s", record.Agent, record.Organization)
		}

		var existing models.Lead
		err := tx.Where("organization_id = ? AND email = ?", org.ID, record.Email).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := leadflow.ValidateInitial(record.category()); err != nil {
				return fmt.Errorf("category %d not allowed for a new lead", record.category())
			}
			lead := models.Lead{
				AgentID:        agent.ID,
				OrganizationID: org.ID,
				FirstName:      record.FirstName,
				LastName:       record.LastName,
				Email:          record.Email,
				PhoneNumber:    record.PhoneNumber,
				Address:        record.Address,
				Age:            record.Age,
				Category:       record.category(),
			}
			if err := tx.Create(&lead).Error; err != nil {
				return err
			}
			action = "created"
			return nil

		case err != nil:
			return err

		default:
			target := record.category()
			if target != existing.Category {
				if err := leadflow.ValidateTransition(existing.Category, target); err != nil {
					return fmt.Errorf("cannot move lead from %s to %s", existing.Category, target)
				}
				// Conversions provision credentials and must go through the
				// API, not an offline batch feed.
				if target == models.CategoryConverted {
					return fmt.Errorf("conversion is not allowed via bulk ingestion")
				}
			}
			updates := map[string]interface{}{
				"agent_id":     agent.ID,
				"first_name":   record.FirstName,
				"last_name":    record.LastName,
				"phone_number": record.PhoneNumber,
				"address":      record.Address,
				"age":          record.Age,
				"category":     target,
				"version":      existing.Version + 1,
			}
			res := tx.Model(&models.Lead{}).
				Where("id = ? AND version = ?", existing.ID, existing.Version).
				Updates(updates)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return leadflow.ErrConcurrentModification
			}
			action = "updated"
			return nil
		}
	})
	if err != nil {
		return "", err
	}
	return action, nil
}
