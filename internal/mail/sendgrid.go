package mail

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const sendGridEndpoint = "/v3/mail/send"

// SendGrid sends through the SendGrid v3 API.
type SendGrid struct {
	key  string
	host string
	from *sgmail.Email
}

// NewSendGrid creates a SendGrid provider. from may be "Name <addr>".
func NewSendGrid(key, from, host string) *SendGrid {
	if host == "" {
		host = "https://api.sendgrid.com"
	}
	sender := sgmail.NewEmail("AMAL-NAMA", from)
	if addr, err := mail.ParseAddress(from); err == nil {
		sender = sgmail.NewEmail(addr.Name, addr.Address)
	}
	return &SendGrid{key: key, host: host, from: sender}
}

func (s *SendGrid) Name() string { return "sendgrid" }

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	return m
}

// Send posts msg to SendGrid. The client library has no context support, so
// ctx is only checked before the call.
func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	if s.key == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	req := sendgrid.GetRequest(s.key, sendGridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request failed: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid error %d: %s", res.StatusCode, res.Body)
	}
	return nil
}
