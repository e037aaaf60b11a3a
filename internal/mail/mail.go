package mail

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type sgSender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

type SendGridClient struct {
	sender   sgSender
	from     string
	fromName string
	log      *zap.Logger
}

func NewSendGridClient(apiKey, from, fromName string, log *zap.Logger) *SendGridClient {
	return &SendGridClient{
		sender:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
		log:      log,
	}
}

func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if c.from == "" {
		return fmt.Errorf("from address is empty")
	}
	if msg.To == "" {
		return fmt.Errorf("to address is empty")
	}

	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	email := sgmail.NewSingleEmail(
		sgmail.NewEmail(c.fromName, c.from),
		msg.Subject,
		sgmail.NewEmail(msg.ToName, msg.To),
		text,
		msg.HTML,
	)

	resp, err := c.sender.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", resp.StatusCode, resp.Body)
	}

	c.log.Debug("mail sent",
		zap.Int("status", resp.StatusCode),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Discard stands in when no SendGrid key is configured.
type Discard struct {
	log *zap.Logger
}

func NewDiscard(log *zap.Logger) *Discard {
	return &Discard{log: log}
}

func (d *Discard) Send(_ context.Context, msg Message) error {
	d.log.Debug("mail discarded", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
