package mail

import "context"

// Console logs messages instead of sending them.
type Console struct{}

func (Console) Name() string { return "console" }

func (Console) Send(_ context.Context, msg Message) error {
	logger.Infof("email to=%s subject=%q\n%s", msg.To, msg.Subject, msg.HTML)
	return nil
}

// NewProvider returns the provider named by name.
func NewProvider(name, from, resendKey, resendURL, sendGridKey, sendGridHost string) Provider {
	switch name {
	case "sendgrid":
		return NewSendGrid(sendGridKey, from, sendGridHost)
	case "console":
		return Console{}
	default:
		return NewResend(resendKey, from, resendURL)
	}
}
