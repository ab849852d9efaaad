package attendance

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/juju/errors"

	"amalnama/internal/audit"
	"amalnama/internal/mail"
	"amalnama/internal/metrics"
	"amalnama/internal/model"
)

// Thresholds are checked in this order after every mark.
var Thresholds = [...]int{90, 87, 85, 80}

const (
	bandWidth = 3
	// CriticalLevel is the percentage at or below which alerts are danger
	// level and an email goes out.
	CriticalLevel = 85
	// AtRiskBelow marks a student at risk in a teacher's courses.
	AtRiskBelow = 85
	// MinimumRequired is the attendance policy minimum.
	MinimumRequired = 80
	// CriticalBelow separates critical from warning violations.
	CriticalBelow = 75
)

// FiredBands returns every threshold t with t-3 < pct <= t, in check order.
func FiredBands(pct int) []int {
	var out []int
	for _, t := range Thresholds {
		if pct <= t && pct > t-bandWidth {
			out = append(out, t)
		}
	}
	return out
}

// checkThreshold emits the alerts for every band the current percentage
// falls into. Bands are not deduplicated.
func (s *Service) checkThreshold(ctx context.Context, studentID, courseID string) error {
	pct, err := s.Percentage(ctx, studentID, courseID)
	if err != nil {
		return err
	}
	bands := FiredBands(pct)
	if len(bands) == 0 {
		return nil
	}
	student, err := s.dir.Get(ctx, studentID)
	if err != nil {
		return errors.Annotatef(err, "student %s", studentID)
	}
	course, err := s.dir.Course(ctx, courseID)
	if err != nil {
		return errors.Annotatef(err, "course %s", courseID)
	}

	critical := pct <= CriticalLevel
	severity, advice := model.SeverityWarning, "Please maintain regular attendance."
	if critical {
		severity, advice = model.SeverityDanger, "Immediate action required!"
	}
	for _, band := range bands {
		metrics.ThresholdAlerts.WithLabelValues(strconv.Itoa(band)).Inc()
		s.notify(ctx, studentID, severity, "Low Attendance Alert",
			fmt.Sprintf("Your attendance in %s is %d%%. %s", course.Name, pct, advice))
		s.notify(ctx, course.TeacherID, model.SeverityWarning, "Student At Risk",
			fmt.Sprintf("%s (%s) attendance in %s has dropped to %d%%.", student.Name, studentID, course.Name, pct))
		if critical && student.Email != "" && s.outbox != nil {
			req := mail.CriticalAttendance(student.Email, student.Name, course.Name, pct)
			if err := s.outbox.Enqueue(ctx, req); err != nil {
				logger.Errorf("critical attendance email for %s: %v", studentID, err)
			}
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, userID string, sev model.Severity, title, msg string) {
	if _, err := s.notes.Create(ctx, userID, sev, title, msg); err != nil {
		logger.Errorf("notify %s %q: %v", userID, title, err)
	}
}

// Standing is a student's attendance in one course.
type Standing struct {
	StudentID   string `json:"studentId"`
	StudentName string `json:"studentName"`
	CourseID    string `json:"courseId"`
	CourseCode  string `json:"courseCode"`
	CourseName  string `json:"courseName"`
	Attendance  int    `json:"attendance"`
	Severity    string `json:"severity,omitempty"`
}

func (s *Service) standings(ctx context.Context, courses []model.Course, below int) ([]Standing, error) {
	var out []Standing
	for _, c := range courses {
		for _, id := range c.Students {
			pct, err := s.Percentage(ctx, id, c.ID)
			if err != nil {
				return nil, err
			}
			if pct >= below {
				continue
			}
			u, err := s.dir.Get(ctx, id)
			if errors.Is(err, errors.NotFound) {
				// Enrolled but deleted from the directory.
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, Standing{
				StudentID:   id,
				StudentName: u.Name,
				CourseID:    c.ID,
				CourseCode:  c.Code,
				CourseName:  c.Name,
				Attendance:  pct,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Attendance < out[j].Attendance })
	return out, nil
}

// AtRisk lists the students below 85% in the teacher's courses, lowest
// first.
func (s *Service) AtRisk(ctx context.Context, teacherID string) ([]Standing, error) {
	courses, err := s.dir.ByTeacher(ctx, teacherID)
	if err != nil {
		return nil, errors.Annotatef(err, "courses of %s", teacherID)
	}
	out, err := s.standings(ctx, courses, AtRiskBelow)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Severity = "warning"
		if out[i].Attendance < MinimumRequired {
			out[i].Severity = "critical"
		}
	}
	return out, nil
}

// PolicyViolations lists every enrollment below the 80% minimum, lowest
// first. Below 75% is critical.
func (s *Service) PolicyViolations(ctx context.Context) ([]Standing, error) {
	courses, err := s.dir.Courses(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "list courses")
	}
	out, err := s.standings(ctx, courses, MinimumRequired)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Severity = "warning"
		if out[i].Attendance < CriticalBelow {
			out[i].Severity = "critical"
		}
	}
	return out, nil
}

func (s *Service) lookup(ctx context.Context, studentID, courseID string) (model.User, model.Course, int, error) {
	student, err := s.dir.Get(ctx, studentID)
	if err != nil {
		return model.User{}, model.Course{}, 0, err
	}
	course, err := s.dir.Course(ctx, courseID)
	if err != nil {
		return model.User{}, model.Course{}, 0, err
	}
	pct, err := s.Percentage(ctx, studentID, courseID)
	if err != nil {
		return model.User{}, model.Course{}, 0, err
	}
	return student, course, pct, nil
}

// SendReminder notifies a student of their attendance in a course.
func (s *Service) SendReminder(ctx context.Context, actor model.User, studentID, courseID string) (model.Notification, error) {
	_, course, pct, err := s.lookup(ctx, studentID, courseID)
	if err != nil {
		return model.Notification{}, err
	}
	n, err := s.notes.Create(ctx, studentID, model.SeverityWarning, "Attendance Reminder",
		fmt.Sprintf("Your attendance in %s is %d%%. Please attend classes regularly to avoid academic penalties.", course.Name, pct))
	if err != nil {
		return model.Notification{}, errors.Annotatef(err, "reminder for %s", studentID)
	}
	logger.Infof("%s sent attendance reminder to %s for %s", actor.ID, studentID, courseID)
	return n, nil
}

// SendWarning issues an official attendance warning and audits it.
func (s *Service) SendWarning(ctx context.Context, actor model.User, studentID, courseID string) (model.Notification, error) {
	student, course, pct, err := s.lookup(ctx, studentID, courseID)
	if err != nil {
		return model.Notification{}, err
	}
	n, err := s.notes.Create(ctx, studentID, model.SeverityDanger, "Official Attendance Warning",
		fmt.Sprintf("Your attendance in %s (%s) is %d%%, which is below the minimum required %d%%. Immediate improvement is required to avoid academic penalties.",
			course.Name, course.Code, pct, MinimumRequired))
	if err != nil {
		return model.Notification{}, errors.Annotatef(err, "warning for %s", studentID)
	}
	s.record(ctx, actor, audit.WarningSent,
		fmt.Sprintf("Sent official warning to %s (%s) for %s", student.Name, studentID, course.Code))
	return n, nil
}
