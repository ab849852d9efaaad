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

// RelayClient delivers requests through a remote /api/send-email endpoint.
type RelayClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewRelayClient creates a client with a bounded timeout.
func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Deliver posts req to the relay. A 400 response is not retryable.
func (c *RelayClient) Deliver(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return errors.NewNotValid(err, "encode email request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/send-email", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return errors.Annotate(err, "email relay request failed")
	}
	defer resp.Body.Close()

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &out)

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return errors.BadRequestf("email relay rejected request: %s", out.Error)
	case resp.StatusCode >= 300:
		return errors.Errorf("email relay error %s: %s", resp.Status, string(raw))
	case !out.Success:
		return errors.Errorf("email relay reported failure: %s", out.Message)
	}
	return nil
}

// NewDeliverer delivers through the relay at relayURL when set, and through
// the local provider otherwise.
func NewDeliverer(relayURL string, p Provider) Deliverer {
	if relayURL != "" {
		return NewRelayClient(relayURL)
	}
	return NewRelay(p)
}
