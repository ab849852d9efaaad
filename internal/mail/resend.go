package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/juju/errors"
)

// Resend sends through the Resend HTTP API.
type Resend struct {
	APIKey string
	From   string
	URL    string
	HTTP   *http.Client
}

// NewResend creates a Resend provider. An empty apiKey leaves it unconfigured.
func NewResend(apiKey, from, url string) *Resend {
	if url == "" {
		url = "https://api.resend.com/emails"
	}
	return &Resend{
		APIKey: apiKey,
		From:   from,
		URL:    url,
		HTTP:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Resend) Name() string { return "resend" }

// Send posts msg to the Resend API.
func (r *Resend) Send(ctx context.Context, msg Message) error {
	if r.APIKey == "" {
		return ErrNotConfigured
	}
	body, _ := json.Marshal(map[string]string{
		"from":    r.From,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return errors.Annotate(err, "resend request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Errorf("resend error %s: %s", resp.Status, string(bodyBytes))
	}
	return nil
}
