package leadflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/models"
)

// ErrDuplicateLead is returned when a lead with the same email already
// exists within the organization.
var ErrDuplicateLead = errors.New("lead email already exists in organization")

// EventPublisher receives non-secret lifecycle events after a successful
// commit. Implementations must never be handed credentials.
type EventPublisher interface {
	PublishLeadEvent(ctx context.Context, event LeadEvent) error
}

// LeadEvent is a lifecycle notification emitted after lead mutations.
type LeadEvent struct {
	Type           string              `json:"type"`
	LeadID         string              `json:"lead_id"`
	OrganizationID string              `json:"organization_id"`
	AgentID        string              `json:"agent_id"`
	FromCategory   models.LeadCategory `json:"from_category,omitempty"`
	ToCategory     models.LeadCategory `json:"to_category,omitempty"`
	CustomerID     string              `json:"customer_id,omitempty"`
}

// Lead event types carried on the lead-events topic.
const (
	EventLeadCreated    = "lead.created"
	EventLeadTransition = "lead.transitioned"
	EventLeadConverted  = "lead.converted"
)

// Engine runs lead mutations: guarded creation, category transitions and
// synchronous conversion provisioning. A transition into Converted and the
// customer/user creation commit or roll back as one unit.
type Engine struct {
	db        *gorm.DB
	deliverer Deliverer
	publisher EventPublisher
	log       *logrus.Entry
}

// NewEngine creates a lead lifecycle engine. deliverer and publisher may be
// nil (CLI tools run without them).
func NewEngine(db *gorm.DB, deliverer Deliverer, publisher EventPublisher) *Engine {
	return &Engine{
		db:        db,
		deliverer: deliverer,
		publisher: publisher,
		log:       logrus.WithField("component", "leadflow"),
	}
}

// CreateLead validates and persists a brand-new lead. Creation directly in
// the Converted category is refused.
func (e *Engine) CreateLead(ctx context.Context, lead *models.Lead) error {
	if lead.Category == 0 {
		lead.Category = models.CategoryNew
	}
	if err := ValidateInitial(lead.Category); err != nil {
		return err
	}
	if err := lead.Validate(); err != nil {
		return err
	}

	if err := e.db.WithContext(ctx).Create(lead).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrDuplicateLead
		}
		return fmt.Errorf("failed to create lead: %w", err)
	}

	e.publish(ctx, LeadEvent{
		Type:           EventLeadCreated,
		LeadID:         lead.ID.String(),
		OrganizationID: lead.OrganizationID.String(),
		AgentID:        lead.AgentID.String(),
		ToCategory:     lead.Category,
	})
	return nil
}

// Transition moves a lead to the target category. The category write uses
// optimistic locking on the lead's version column, so when two requests race
// only one commits; the loser gets ErrConcurrentModification and is not
// retried here. When the target is Converted the customer provisioner runs
// inside the same transaction, and a provisioning failure rolls the category
// change back.
func (e *Engine) Transition(ctx context.Context, lead *models.Lead, target models.LeadCategory) (*models.Customer, error) {
	if target == lead.Category {
		return nil, nil
	}
	if err := ValidateTransition(lead.Category, target); err != nil {
		return nil, err
	}

	from := lead.Category
	var (
		customer *models.Customer
		creds    *Credentials
	)

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Lead{}).
			Where("id = ? AND version = ?", lead.ID, lead.Version).
			Updates(map[string]interface{}{
				"category": target,
				"version":  lead.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update lead category: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentModification
		}

		if target == models.CategoryConverted {
			var provErr error
			customer, creds, provErr = provisionCustomer(tx, lead)
			if provErr != nil {
				return provErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lead.Category = target
	lead.Version++

	// Credential delivery happens after commit so a mail outage cannot roll
	// back a legitimate conversion. creds is nil on idempotent re-runs.
	if creds != nil && e.deliverer != nil {
		if err := e.deliverer.DeliverCredentials(ctx, *creds); err != nil {
			e.log.WithError(err).WithField("lead_id", lead.ID).
				Error("Failed to deliver generated credentials")
		}
	}

	event := LeadEvent{
		Type:           EventLeadTransition,
		LeadID:         lead.ID.String(),
		OrganizationID: lead.OrganizationID.String(),
		AgentID:        lead.AgentID.String(),
		FromCategory:   from,
		ToCategory:     target,
	}
	if target == models.CategoryConverted && customer != nil {
		event.Type = EventLeadConverted
		event.CustomerID = customer.ID.String()
	}
	e.publish(ctx, event)

	return customer, nil
}

// UpdateLead persists field changes that do not touch the category. The
// caller supplies the already-scoped lead; category changes must go through
// Transition. Field updates carry the same version predicate as transitions,
// so a racing writer gets ErrConcurrentModification instead of a silent
// last-write-wins.
func (e *Engine) UpdateLead(ctx context.Context, lead *models.Lead) error {
	if err := lead.Validate(); err != nil {
		return err
	}
	res := e.db.WithContext(ctx).Model(&models.Lead{}).
		Where("id = ? AND version = ?", lead.ID, lead.Version).
		Updates(map[string]interface{}{
			"first_name":   lead.FirstName,
			"last_name":    lead.LastName,
			"email":        lead.Email,
			"phone_number": lead.PhoneNumber,
			"address":      lead.Address,
			"age":          lead.Age,
			"version":      lead.Version + 1,
		})
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return ErrDuplicateLead
		}
		return fmt.Errorf("failed to update lead: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	lead.Version++
	return nil
}

func (e *Engine) publish(ctx context.Context, event LeadEvent) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.PublishLeadEvent(ctx, event); err != nil {
		e.log.WithError(err).WithField("event", event.Type).
			Warn("Failed to publish lead event")
	}
}

// DescribeTransitionError renders a user-facing message for a refused
// transition.
func DescribeTransitionError(from, to models.LeadCategory) string {
	allowed := AllowedTargets(from)
	if len(allowed) == 0 {
		return fmt.Sprintf("lead is %s, which is terminal", from)
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = a.String()
	}
	return fmt.Sprintf("cannot move lead from %s to %s (allowed: %s)",
		from, to, strings.Join(names, ", "))
}
