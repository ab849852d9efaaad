package model

import "time"

// Role is the access level of a user.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// User is a student, teacher or administrator.
type User struct {
	ID         string    `json:"id" validate:"required"`
	Name       string    `json:"name" validate:"required"`
	Email      string    `json:"email" validate:"required,email"`
	Password   string    `json:"password,omitempty" validate:"required"`
	Role       Role      `json:"role" validate:"required,oneof=student teacher admin"`
	Department string    `json:"department,omitempty"`
	Program    string    `json:"program,omitempty"`
	Semester   int       `json:"semester,omitempty"`
	Section    string    `json:"section,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Public returns a copy of u without the credential.
func (u User) Public() User {
	u.Password = ""
	return u
}

// Course is a taught course and its roster. ID always equals Code.
type Course struct {
	ID          string   `json:"id"`
	Code        string   `json:"code" validate:"required"`
	Name        string   `json:"name" validate:"required"`
	CreditHours int      `json:"creditHours" validate:"required,gt=0"`
	TeacherID   string   `json:"teacherId" validate:"required"`
	TeacherName string   `json:"teacherName,omitempty"`
	Department  string   `json:"department,omitempty"`
	Semester    int      `json:"semester,omitempty"`
	Schedule    string   `json:"schedule,omitempty"`
	Room        string   `json:"room,omitempty"`
	Students    []string `json:"students"`
}

// HasStudent reports whether studentID is on the roster.
func (c Course) HasStudent(studentID string) bool {
	for _, s := range c.Students {
		if s == studentID {
			return true
		}
	}
	return false
}

// AttendanceStatus is the outcome of a single class session for a student.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
)

// Valid reports whether s is a known status.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Attended reports whether s counts towards the attendance percentage.
func (s AttendanceStatus) Attended() bool {
	return s == StatusPresent || s == StatusLate
}

// DateLayout is the layout of AttendanceEvent.Date.
const DateLayout = "2006-01-02"

// AttendanceEvent is one mark for a (student, course, date).
type AttendanceEvent struct {
	ID        string           `json:"id"`
	StudentID string           `json:"studentId"`
	CourseID  string           `json:"courseId"`
	Date      string           `json:"date"`
	Status    AttendanceStatus `json:"status"`
	MarkedBy  string           `json:"markedBy"`
	MarkedAt  time.Time        `json:"markedAt"`
	Notes     string           `json:"notes"`
}

// GradeEvent is one posted assessment score.
type GradeEvent struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"studentId" validate:"required"`
	CourseID       string    `json:"courseId" validate:"required"`
	AssessmentType string    `json:"assessmentType" validate:"required"`
	Weight         float64   `json:"weight" validate:"gte=0,lte=100"`
	MaxMarks       float64   `json:"maxMarks" validate:"gt=0"`
	ObtainedMarks  float64   `json:"obtainedMarks" validate:"gte=0"`
	Percentage     float64   `json:"percentage"`
	PostedBy       string    `json:"postedBy"`
	PostedAt       time.Time `json:"postedAt"`
}

// Notification is a user-targeted alert. Only Read changes after creation.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      Severity  `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditEntry is an append-only record of an administrative action.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Details   string    `json:"details"`
	Flagged   bool      `json:"flagged,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
