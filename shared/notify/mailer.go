package notify

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ses"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/leadflow"
	"github.com/leadstack/go-crm-system/shared/utils"
)

// SESMailer sends transactional mail through AWS SES, guarded by a circuit
// breaker so a mail-provider outage fails fast instead of piling up request
// goroutines. It implements leadflow.Deliverer for one-time credential
// delivery; the plaintext password lives only for the duration of the call.
type SESMailer struct {
	client  *ses.SES
	sender  string
	breaker *utils.CircuitBreaker
	log     *logrus.Entry
}

// NewSESMailer creates a mailer from AWS_REGION and MAIL_SENDER.
func NewSESMailer() (*SESMailer, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	sender := os.Getenv("MAIL_SENDER")
	if sender == "" {
		return nil, fmt.Errorf("MAIL_SENDER must be set")
	}

	return &SESMailer{
		client:  ses.New(sess),
		sender:  sender,
		breaker: utils.NewCircuitBreaker(5, 30*time.Second),
		log:     logrus.WithField("component", "notify.mailer"),
	}, nil
}

// DeliverCredentials mails generated login credentials to the account
// holder. The credentials are not retained anywhere after this call.
func (m *SESMailer) DeliverCredentials(ctx context.Context, creds leadflow.Credentials) error {
	subject := "Your account credentials"
	body := fmt.Sprintf(
		"Hello %s,\n\nAn account has been created for you.\n\nUsername: %s\nPassword: %s\n\nPlease sign in and change your password.\n",
		creds.Recipient, creds.Username, creds.Password)

	if err := m.send(creds.Email, subject, body); err != nil {
		return fmt.Errorf("credential delivery failed: %w", err)
	}
	m.log.WithField("username", creds.Username).Info("Delivered account credentials")
	return nil
}

// Notify sends a plain operational notification.
func (m *SESMailer) Notify(recipient, subject, body string) error {
	return m.send(recipient, subject, body)
}

func (m *SESMailer) send(recipient, subject, body string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(m.sender),
		Destination: &ses.Destination{
			ToAddresses: []*string{aws.String(recipient)},
		},
		Message: &ses.Message{
			Subject: &ses.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &ses.Body{
				Text: &ses.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	}

	return m.breaker.Call(func() error {
		_, err := m.client.SendEmail(input)
		return err
	})
}
