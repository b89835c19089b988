package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/leadstack/go-crm-system/shared/leadflow"
	"github.com/leadstack/go-crm-system/shared/models"
	"github.com/leadstack/go-crm-system/shared/notify"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// Notifier sends operational mail. Satisfied by notify.SESMailer.
type Notifier interface {
	Notify(recipient, subject, body string) error
}

// adminEmailCacheTTL bounds staleness of the cached org→admin-email lookup.
const adminEmailCacheTTL = 10 * time.Minute

// EventConsumer reads lead lifecycle events and turns conversions into
// admin notification mail.
type EventConsumer struct {
	reader *kafka.Reader
	db     *gorm.DB
	mailer Notifier
	log    *logrus.Entry
	done   chan struct{}
}

// NewEventConsumer creates a consumer on the lead-events topic.
func NewEventConsumer(broker string, db *gorm.DB, mailer Notifier) *EventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{broker},
		Topic:          notify.LeadEventsTopic,
		GroupID:        "notifier-service",
		MinBytes:       10e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})

	return &EventConsumer{
		reader: reader,
		db:     db,
		mailer: mailer,
		log:    logrus.WithField("component", "notifier"),
		done:   make(chan struct{}),
	}
}

// Run consumes events until Close is called. Per-event failures are logged
// and skipped; notification mail is best effort.
func (ec *EventConsumer) Run() {
	ec.log.Info("Starting lead event consumer")

	for {
		select {
		case <-ec.done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		msg, err := ec.reader.ReadMessage(ctx)
		cancel()

		if err != nil {
			// Timeouts just mean no messages were available.
			if errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			ec.log.WithError(err).Error("Failed to read lead event")
			time.Sleep(time.Second)
			continue
		}

		var event leadflow.LeadEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			ec.log.WithError(err).Warn("Skipping malformed lead event")
			continue
		}

		if err := ec.handleEvent(event); err != nil {
			ec.log.WithError(err).WithField("event", event.Type).
				Warn("Failed to handle lead event")
		}
	}
}

func (ec *EventConsumer) handleEvent(event leadflow.LeadEvent) error {
	if event.Type != leadflow.EventLeadConverted {
		return nil
	}

	adminEmail, err := ec.adminEmailForOrganization(event.OrganizationID)
	if err != nil {
		return err
	}

	subject := "A lead was converted"
	body := fmt.Sprintf(
		"Lead %s was converted to customer %s.\n\nSign in to review the new customer record.\n",
		event.LeadID, event.CustomerID)

	if err := ec.mailer.Notify(adminEmail, subject, body); err != nil {
		return fmt.Errorf("failed to notify admin: %w", err)
	}

	ec.log.WithFields(logrus.Fields{
		"lead_id":     event.LeadID,
		"customer_id": event.CustomerID,
	}).Info("Sent conversion notification")
	return nil
}

// adminEmailForOrganization resolves the notification recipient for a
// tenant, through a Redis read-through cache. Without Redis every event
// would hit the database for the same handful of admins.
func (ec *EventConsumer) adminEmailForOrganization(orgID string) (string, error) {
	cacheKey := fmt.Sprintf("org:admin-email:%s", orgID)
	if email, err := utils.CacheGet(cacheKey); err == nil && email != "" {
		return email, nil
	}

	var admin models.Admin
	err := ec.db.Preload("User").Where("organization_id = ?", orgID).First(&admin).Error
	if err != nil {
		return "", fmt.Errorf("no admin for organization %s: %w", orgID, err)
	}
	if admin.User == nil || admin.User.Email == "" {
		return "", fmt.Errorf("admin of organization %s has no email", orgID)
	}

	if err := utils.CacheSet(cacheKey, admin.User.Email, adminEmailCacheTTL); err != nil {
		ec.log.WithError(err).Debug("Failed to cache admin email")
	}
	return admin.User.Email, nil
}

// Close stops the consumer loop and closes the Kafka reader.
func (ec *EventConsumer) Close() error {
	close(ec.done)
	return ec.reader.Close()
}
