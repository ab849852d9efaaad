// Package seed loads the demo university into an empty store.
package seed

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo/v2"

	"amalnama/internal/auth"
	"amalnama/internal/ident"
	"amalnama/internal/model"
	"amalnama/internal/store"
)

var logger = loggo.GetLogger("amalnama.seed")

// Stores are the collections the seeder fills.
type Stores struct {
	Users         *store.Collection[model.User]
	Courses       *store.Collection[model.Course]
	Attendance    *store.Collection[model.AttendanceEvent]
	Grades        *store.Collection[model.GradeEvent]
	Notifications *store.Collection[model.Notification]
	Audit         *store.Collection[model.AuditEntry]
}

type replacer interface {
	Replace(ctx context.Context, raw string) error
}

func (s Stores) all() []replacer {
	return []replacer{s.Users, s.Courses, s.Attendance, s.Grades, s.Notifications, s.Audit}
}

// Seeder writes the demo records directly, without triggering alerts.
type Seeder struct {
	backend store.Backend
	stores  Stores
	ids     ident.Generator
	clock   clock.Clock
	rand    *rand.Rand
}

// New creates a seeder. r drives the generated attendance and marks.
func New(b store.Backend, stores Stores, ids ident.Generator, clk clock.Clock, r *rand.Rand) *Seeder {
	return &Seeder{backend: b, stores: stores, ids: ids, clock: clk, rand: r}
}

// Seed loads the demo data unless the store is already seeded. force clears
// every collection first. It reports whether anything was written.
func (s *Seeder) Seed(ctx context.Context, force bool) (bool, error) {
	seeded, err := store.Flag(ctx, s.backend, store.SeededKey)
	if err != nil {
		return false, err
	}
	if seeded && !force {
		logger.Debugf("store already seeded")
		return false, nil
	}
	if force {
		for _, c := range s.stores.all() {
			if err := c.Replace(ctx, "[]"); err != nil {
				return false, errors.Annotate(err, "clear before seeding")
			}
		}
	}

	steps := []struct {
		name string
		fn   func(context.Context) (int, error)
	}{
		{"users", s.users},
		{"courses", s.courses},
		{"attendance", s.attendance},
		{"grades", s.grades},
		{"notifications", s.notifications},
		{"audit log", s.auditLog},
	}
	for _, step := range steps {
		n, err := step.fn(ctx)
		if err != nil {
			return false, errors.Annotatef(err, "seed %s", step.name)
		}
		logger.Infof("seeded %d %s", n, step.name)
	}
	if err := store.SetFlag(ctx, s.backend, store.SeededKey, true); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Seeder) users(ctx context.Context) (int, error) {
	hashes := map[string]string{}
	for _, u := range demoUsers {
		if _, ok := hashes[u.Password]; ok {
			continue
		}
		h, err := auth.HashPassword(u.Password)
		if err != nil {
			return 0, err
		}
		hashes[u.Password] = h
	}
	for _, u := range demoUsers {
		u.Password = hashes[u.Password]
		if err := s.stores.Users.Put(ctx, u); err != nil {
			return 0, err
		}
	}
	return len(demoUsers), nil
}

func (s *Seeder) courses(ctx context.Context) (int, error) {
	for _, c := range demoCourses {
		c.Students = append([]string(nil), c.Students...)
		if err := s.stores.Courses.Put(ctx, c); err != nil {
			return 0, err
		}
	}
	return len(demoCourses), nil
}

// status draws an attendance status from the student's profile.
func (s *Seeder) status(studentID string) model.AttendanceStatus {
	r := s.rand.Float64()
	switch attendanceProfiles[studentID] {
	case profileLow:
		switch {
		case r < 0.78:
			return model.StatusPresent
		case r < 0.92:
			return model.StatusAbsent
		}
		return model.StatusLate
	case profileExcellent:
		switch {
		case r < 0.93:
			return model.StatusPresent
		case r < 0.97:
			return model.StatusLate
		}
		return model.StatusAbsent
	}
	switch {
	case r < 0.85:
		return model.StatusPresent
	case r < 0.95:
		return model.StatusAbsent
	}
	return model.StatusLate
}

func (s *Seeder) attendance(ctx context.Context) (int, error) {
	today := s.clock.Now().UTC()
	n := 0
	for i := 30; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, c := range demoCourses {
			for _, id := range c.Students {
				st := s.status(id)
				evt := model.AttendanceEvent{
					ID:        s.ids.New(ident.Attendance),
					StudentID: id,
					CourseID:  c.ID,
					Date:      day.Format(model.DateLayout),
					Status:    st,
					MarkedBy:  c.TeacherID,
					MarkedAt:  day,
				}
				if st == model.StatusLate {
					evt.Notes = "Arrived 10 minutes late"
				}
				if err := s.stores.Attendance.Put(ctx, evt); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}

func (s *Seeder) grades(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	n := 0
	for _, c := range demoCourses {
		for _, id := range c.Students {
			base := 0.75
			if cgpa, ok := priorCGPA[id]; ok {
				base = cgpa/4*0.85 + 0.15
			}
			for _, a := range demoAssessments {
				variance := (s.rand.Float64() - 0.5) * 0.3
				perf := math.Min(1, math.Max(0.4, base+variance))
				obtained := math.Round(a.maxMarks * perf)
				offset := time.Duration(s.rand.Float64() * float64(30*24*time.Hour))
				g := model.GradeEvent{
					ID:             s.ids.New(ident.Grade),
					StudentID:      id,
					CourseID:       c.ID,
					AssessmentType: a.name,
					Weight:         a.weight,
					MaxMarks:       a.maxMarks,
					ObtainedMarks:  obtained,
					Percentage:     obtained / a.maxMarks * 100,
					PostedBy:       c.TeacherID,
					PostedAt:       now.Add(-offset),
				}
				if err := s.stores.Grades.Put(ctx, g); err != nil {
					return n, err
				}
				n++
			}
		}
	}
	return n, nil
}

func (s *Seeder) notifications(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	for _, d := range demoNotifications {
		n := model.Notification{
			ID:        s.ids.New(ident.Notification),
			UserID:    d.userID,
			Type:      d.severity,
			Title:     d.title,
			Message:   d.message,
			Read:      d.read,
			CreatedAt: now.Add(-d.age),
		}
		if err := s.stores.Notifications.Put(ctx, n); err != nil {
			return 0, err
		}
	}
	return len(demoNotifications), nil
}

func (s *Seeder) auditLog(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	for _, d := range demoAudit {
		e := model.AuditEntry{
			ID:        s.ids.New(ident.Audit),
			Action:    d.action,
			UserID:    d.userID,
			UserName:  d.userName,
			Details:   d.details,
			Flagged:   d.flagged,
			Timestamp: now.Add(-d.age),
		}
		if err := s.stores.Audit.Put(ctx, e); err != nil {
			return 0, err
		}
	}
	return len(demoAudit), nil
}
