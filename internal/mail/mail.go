// Package mail renders and delivers the outbound alert emails.
package mail

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("amalnama.mail")

// Email types accepted by the relay.
const (
	TypeCriticalAttendance = "critical-attendance"
	TypeGradeNotification  = "grade-notification"
)

// Subjects used by the engine.
const (
	SubjectCriticalAttendance = "Critical Attendance Alert - AMAL-NAMA"
	SubjectGradeNotification  = "New Grade Posted - AMAL-NAMA"
)

// ErrNotConfigured is returned by providers without a credential.
const ErrNotConfigured = errors.ConstError("email provider not configured")

// Request is the relay payload.
type Request struct {
	To      string         `json:"to"`
	Subject string         `json:"subject"`
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
}

// Message is a rendered email ready for a provider.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Provider sends rendered messages.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Deliverer sends a relay request, returning an error on failure.
type Deliverer interface {
	Deliver(ctx context.Context, req Request) error
}

// CriticalAttendance builds the alert sent when attendance falls into a
// critical band.
func CriticalAttendance(to, studentName, courseName string, attendance int) Request {
	return Request{
		To:      to,
		Subject: SubjectCriticalAttendance,
		Type:    TypeCriticalAttendance,
		Data: map[string]any{
			"studentName": studentName,
			"courseName":  courseName,
			"attendance":  attendance,
		},
	}
}

// GradeNotification builds the email sent when a grade is posted.
func GradeNotification(to, studentName, courseName, assessment string, obtained, max, percentage float64) Request {
	return Request{
		To:      to,
		Subject: SubjectGradeNotification,
		Type:    TypeGradeNotification,
		Data: map[string]any{
			"studentName":    studentName,
			"courseName":     courseName,
			"assessmentType": assessment,
			"obtainedMarks":  obtained,
			"maxMarks":       max,
			"percentage":     percentage,
		},
	}
}

// Relay renders requests and hands them to a provider.
type Relay struct {
	provider Provider
}

// NewRelay creates a relay over p.
func NewRelay(p Provider) *Relay {
	return &Relay{provider: p}
}

// Provider returns the configured provider.
func (r *Relay) Provider() Provider { return r.provider }

// Deliver renders and sends req.
func (r *Relay) Deliver(ctx context.Context, req Request) error {
	msg, err := Render(req)
	if err != nil {
		return err
	}
	return errors.Annotatef(r.provider.Send(ctx, msg), "send via %s", r.provider.Name())
}

// Send delivers req and reports success. Failures are logged.
func (r *Relay) Send(ctx context.Context, req Request) bool {
	err := r.Deliver(ctx, req)
	switch {
	case err == nil:
		logger.Infof("email %s sent to %s", req.Type, req.To)
		return true
	case errors.Is(err, ErrNotConfigured):
		logger.Warningf("email not sent: %s provider not configured", r.provider.Name())
	default:
		logger.Errorf("email send error: %v", err)
	}
	return false
}
