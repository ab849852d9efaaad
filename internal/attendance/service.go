// Package attendance records class attendance and derives percentages and
// threshold alerts from it.
package attendance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"amalnama/internal/audit"
	"amalnama/internal/ident"
	"amalnama/internal/mail"
	"amalnama/internal/metrics"
	"amalnama/internal/model"
)

var logger = loggo.GetLogger("amalnama.attendance")

// Directory resolves users and courses.
type Directory interface {
	Get(ctx context.Context, id string) (model.User, error)
	Course(ctx context.Context, id string) (model.Course, error)
	Courses(ctx context.Context) ([]model.Course, error)
	ByTeacher(ctx context.Context, teacherID string) ([]model.Course, error)
}

// Notifier writes user notifications.
type Notifier interface {
	Create(ctx context.Context, userID string, severity model.Severity, title, message string) (model.Notification, error)
}

// Auditor records administrative actions.
type Auditor interface {
	Record(ctx context.Context, actor model.User, action, details string) (model.AuditEntry, error)
}

// Outbox queues outbound email without blocking.
type Outbox interface {
	Enqueue(ctx context.Context, req mail.Request) error
}

// Stats are raw counts for a set of events.
type Stats struct {
	Total      int `json:"total"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Late       int `json:"late"`
	Percentage int `json:"percentage"`
}

// BulkEntry is one row of a session sheet.
type BulkEntry struct {
	StudentID string                 `json:"studentId" binding:"required"`
	Status    model.AttendanceStatus `json:"status" binding:"required"`
	Notes     string                 `json:"notes"`
}

// Service is the attendance aggregator.
type Service struct {
	repo   *Repository
	dir    Directory
	notes  Notifier
	audit  Auditor
	outbox Outbox
	ids    ident.Generator
	clock  clock.Clock
}

// NewService wires the aggregator. outbox may be nil to disable email.
func NewService(repo *Repository, dir Directory, notes Notifier, audit Auditor, outbox Outbox, ids ident.Generator, clk clock.Clock) *Service {
	return &Service{repo: repo, dir: dir, notes: notes, audit: audit, outbox: outbox, ids: ids, clock: clk}
}

// Repository returns the event store.
func (s *Service) Repository() *Repository { return s.repo }

func (s *Service) events(ctx context.Context, studentID, courseID string) ([]model.AttendanceEvent, error) {
	switch {
	case studentID != "" && courseID != "":
		return s.repo.ByStudentCourse(ctx, studentID, courseID)
	case studentID != "":
		return s.repo.ByStudent(ctx, studentID)
	case courseID != "":
		return s.repo.ByCourse(ctx, courseID)
	}
	return s.repo.All(ctx)
}

func percent(attended, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(100 * float64(attended) / float64(total)))
}

// Percentage returns the share of a student's sessions attended, counting
// late as attended. An empty courseID covers all courses. No events yields
// 100.
func (s *Service) Percentage(ctx context.Context, studentID, courseID string) (int, error) {
	evts, err := s.events(ctx, studentID, courseID)
	if err != nil {
		return 0, errors.Annotate(err, "attendance percentage")
	}
	attended := 0
	for _, e := range evts {
		if e.Status.Attended() {
			attended++
		}
	}
	return percent(attended, len(evts)), nil
}

// Stats returns raw counts. Either filter may be empty.
func (s *Service) Stats(ctx context.Context, studentID, courseID string) (Stats, error) {
	evts, err := s.events(ctx, studentID, courseID)
	if err != nil {
		return Stats{}, errors.Annotate(err, "attendance stats")
	}
	var st Stats
	st.Total = len(evts)
	for _, e := range evts {
		switch e.Status {
		case model.StatusPresent:
			st.Present++
		case model.StatusAbsent:
			st.Absent++
		case model.StatusLate:
			st.Late++
		}
	}
	st.Percentage = percent(st.Present+st.Late, st.Total)
	return st, nil
}

// Mark upserts the event for (student, course, date) and evaluates the
// threshold policy. Policy failures are logged and never fail the mark.
func (s *Service) Mark(ctx context.Context, studentID, courseID, date string, status model.AttendanceStatus, markedBy, notes string) (model.AttendanceEvent, error) {
	if studentID == "" || courseID == "" {
		return model.AttendanceEvent{}, errors.NotValidf("student and course required")
	}
	if !status.Valid() {
		return model.AttendanceEvent{}, errors.NotValidf("attendance status %q", status)
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return model.AttendanceEvent{}, errors.NotValidf("date %q", date)
	}
	evt, err := s.repo.Upsert(ctx, model.AttendanceEvent{
		StudentID: studentID,
		CourseID:  courseID,
		Date:      date,
		Status:    status,
		MarkedBy:  markedBy,
		MarkedAt:  s.clock.Now().UTC(),
		Notes:     notes,
	}, func() string { return s.ids.New(ident.Attendance) })
	if err != nil {
		return model.AttendanceEvent{}, errors.Annotatef(err, "mark %s in %s on %s", studentID, courseID, date)
	}
	metrics.AttendanceMarks.WithLabelValues(string(status)).Inc()

	if err := s.checkThreshold(ctx, studentID, courseID); err != nil {
		logger.Warningf("threshold policy for %s in %s: %v", studentID, courseID, err)
	}
	return evt, nil
}

// MarkBulk marks every entry for one session. It is not atomic: it stops at
// the first failure and returns what was marked so far.
func (s *Service) MarkBulk(ctx context.Context, courseID, date string, entries []BulkEntry, markedBy string) ([]model.AttendanceEvent, error) {
	out := make([]model.AttendanceEvent, 0, len(entries))
	for _, e := range entries {
		evt, err := s.Mark(ctx, e.StudentID, courseID, date, e.Status, markedBy, e.Notes)
		if err != nil {
			return out, err
		}
		out = append(out, evt)
	}
	return out, nil
}

// RecordSession marks a whole session on behalf of actor and audits it.
func (s *Service) RecordSession(ctx context.Context, actor model.User, courseID, date string, entries []BulkEntry) ([]model.AttendanceEvent, error) {
	if len(entries) == 0 {
		return nil, errors.NotValidf("empty attendance sheet")
	}
	out, err := s.MarkBulk(ctx, courseID, date, entries, actor.ID)
	if err != nil {
		return out, err
	}
	s.record(ctx, actor, audit.AttendanceMarked,
		fmt.Sprintf("Marked attendance for %s on %s - %d students", courseID, date, len(entries)))
	return out, nil
}

// ByStudent returns a student's events.
func (s *Service) ByStudent(ctx context.Context, studentID string) ([]model.AttendanceEvent, error) {
	return s.repo.ByStudent(ctx, studentID)
}

// ByCourse returns a course's events.
func (s *Service) ByCourse(ctx context.Context, courseID string) ([]model.AttendanceEvent, error) {
	return s.repo.ByCourse(ctx, courseID)
}

// ForCourseAndDate returns the marks of one session.
func (s *Service) ForCourseAndDate(ctx context.Context, courseID, date string) ([]model.AttendanceEvent, error) {
	return s.repo.ForCourseAndDate(ctx, courseID, date)
}

// ByDate returns the marks made on date.
func (s *Service) ByDate(ctx context.Context, date string) ([]model.AttendanceEvent, error) {
	return s.repo.ByDate(ctx, date)
}

func (s *Service) record(ctx context.Context, actor model.User, action, details string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, actor, action, details); err != nil {
		logger.Errorf("audit %s: %v", action, err)
	}
}
