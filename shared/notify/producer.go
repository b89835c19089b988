// Package notify carries the outbound side channels of the CRM: non-secret
// lead lifecycle events on Kafka and one-time credential delivery over SES.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/leadflow"
)

// LeadEventsTopic is the Kafka topic for lead lifecycle events.
const LeadEventsTopic = "lead-events"

// Producer publishes lead events to Kafka through a worker pool so request
// handlers never block on the broker. Events are keyed by organization so a
// tenant's events stay ordered within a partition.
type Producer struct {
	writer       *kafka.Writer
	eventChan    chan leadflow.LeadEvent
	workerCount  int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	log          *logrus.Entry
}

// NewProducer creates a Kafka producer with a worker pool.
func NewProducer(broker string) (*Producer, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(broker),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}

	p := &Producer{
		writer:       writer,
		eventChan:    make(chan leadflow.LeadEvent, 1000),
		workerCount:  4,
		shutdownChan: make(chan struct{}),
		log:          logrus.WithField("component", "notify.producer"),
	}

	p.startWorkers()
	return p, nil
}

func (p *Producer) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.eventWorker(i)
	}
	p.log.Infof("Started %d lead event workers", p.workerCount)
}

func (p *Producer) eventWorker(id int) {
	defer p.wg.Done()

	for {
		select {
		case event := <-p.eventChan:
			if err := p.sendEventSync(event); err != nil {
				p.log.WithError(err).Warnf("Worker %d failed to send lead event", id)
			}
		case <-p.shutdownChan:
			return
		}
	}
}

// PublishLeadEvent queues an event asynchronously (non-blocking). It
// implements leadflow.EventPublisher.
func (p *Producer) PublishLeadEvent(ctx context.Context, event leadflow.LeadEvent) error {
	select {
	case p.eventChan <- event:
		return nil
	default:
		return fmt.Errorf("lead event queue full, event dropped")
	}
}

func (p *Producer) sendEventSync(event leadflow.LeadEvent) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal lead event: %w", err)
	}

	msg := kafka.Message{
		Topic: LeadEventsTopic,
		Key:   []byte(event.OrganizationID),
		Value: message,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "organization_id", Value: []byte(event.OrganizationID)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write lead event to Kafka: %w", err)
	}

	return nil
}

// Close drains the workers and closes the Kafka writer.
func (p *Producer) Close() error {
	close(p.shutdownChan)
	p.wg.Wait()
	close(p.eventChan)

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}
