package mail

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type fakeSender struct {
	sent   []*sgmail.SGMailV3
	status int
	err    error
}

func (f *fakeSender) SendWithContext(_ context.Context, email *sgmail.SGMailV3) (*rest.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, email)
	return &rest.Response{StatusCode: f.status, Body: "{}"}, nil
}

func newTestClient(s *fakeSender) *SendGridClient {
	return &SendGridClient{sender: s, from: "stock@example.com", fromName: "Grocery Stock", log: zap.NewNop()}
}

func TestSendGridClient_Send(t *testing.T) {
	s := &fakeSender{status: 202}
	c := newTestClient(s)
	err := c.Send(context.Background(), Message{
		To: "owner@example.com", ToName: "Owner", Subject: "Low Stock Alert", HTML: "<p>low</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(s.sent) != 1 {
		t.Fatalf("want 1 email, got %d", len(s.sent))
	}
	email := s.sent[0]
	if email.From.Address != "stock@example.com" || email.Subject != "Low Stock Alert" {
		t.Fatalf("unexpected email: %+v", email)
	}
	if got := email.Personalizations[0].To[0].Address; got != "owner@example.com" {
		t.Fatalf("recipient: got %q", got)
	}
}

func TestSendGridClient_Errors(t *testing.T) {
	if err := newTestClient(&fakeSender{status: 202}).Send(context.Background(), Message{Subject: "x"}); err == nil {
		t.Fatalf("missing recipient should fail")
	}

	err := newTestClient(&fakeSender{status: 401}).Send(context.Background(), Message{To: "a@example.com", Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "status=401") {
		t.Fatalf("want status error, got %v", err)
	}

	err = newTestClient(&fakeSender{err: errors.New("dial tcp")}).Send(context.Background(), Message{To: "a@example.com", Subject: "x"})
	if err == nil || !strings.Contains(err.Error(), "dial tcp") {
		t.Fatalf("want transport error, got %v", err)
	}
}
