package seed

import (
	"time"

	"amalnama/internal/audit"
	"amalnama/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

var demoUsers = []model.User{
	{ID: "A-0001", Name: "Dr. Ahmed Khan", Email: "admin@university.edu", Password: "admin123", Role: model.RoleAdmin,
		Department: "Administration", Phone: "+92-300-1234567", CreatedAt: date("2024-01-01T00:00:00Z")},

	{ID: "T-5678", Name: "Prof. Sarah Ahmed", Email: "sarah.ahmed@university.edu", Password: "teacher123", Role: model.RoleTeacher,
		Department: "Computer Science", Phone: "+92-300-2345678", CreatedAt: date("2024-01-15T00:00:00Z")},
	{ID: "T-5679", Name: "Dr. Ali Hassan", Email: "ali.hassan@university.edu", Password: "teacher123", Role: model.RoleTeacher,
		Department: "Computer Science", Phone: "+92-300-3456789", CreatedAt: date("2024-01-15T00:00:00Z")},
	{ID: "T-5680", Name: "Ms. Fatima Zaidi", Email: "fatima.zaidi@university.edu", Password: "teacher123", Role: model.RoleTeacher,
		Department: "Mathematics", Phone: "+92-300-4567890", CreatedAt: date("2024-01-20T00:00:00Z")},

	{ID: "21K-1234", Name: "Ali Ibrahim", Email: "ali.ibrahim@student.edu", Password: "student123", Role: model.RoleStudent,
		Program: "BSCS", Semester: 5, Section: "A", CreatedAt: date("2024-02-01T00:00:00Z")},
	{ID: "21K-1235", Name: "Azka Faisal", Email: "azka.faisal@student.edu", Password: "student123", Role: model.RoleStudent,
		Program: "BSCS", Semester: 5, Section: "A", CreatedAt: date("2024-02-01T00:00:00Z")},
	{ID: "21K-1236", Name: "Misbah Irfan", Email: "misbah.irfan@student.edu", Password: "student123", Role: model.RoleStudent,
		Program: "BSCS", Semester: 5, Section: "A", CreatedAt: date("2024-02-01T00:00:00Z")},
	{ID: "22K-3001", Name: "Hassan Ali", Email: "hassan.ali@student.edu", Password: "student123", Role: model.RoleStudent,
		Program: "BSCS", Semester: 3, Section: "B", CreatedAt: date("2024-02-05T00:00:00Z")},
	{ID: "22K-3002", Name: "Ayesha Khan", Email: "ayesha.khan@student.edu", Password: "student123", Role: model.RoleStudent,
		Program: "BSCS", Semester: 3, Section: "B", CreatedAt: date("2024-02-05T00:00:00Z")},
	{ID: "23K-5001", Name: "Bilal Ahmed", Email: "bilal.ahmed@student.edu", Password: "student123", Role: model.RoleStudent,
		Program: "BSCS", Semester: 1, Section: "A", CreatedAt: date("2024-02-10T00:00:00Z")},
	{ID: "23K-5002", Name: "Zara Malik", Email: "zara.malik@student.edu", Password: "student123", Role: model.RoleStudent,
		Program: "BSCS", Semester: 1, Section: "A", CreatedAt: date("2024-02-10T00:00:00Z")},
}

// priorCGPA drives the generated marks. First semester students have none.
var priorCGPA = map[string]float64{
	"21K-1234": 3.45,
	"21K-1235": 3.72,
	"21K-1236": 3.58,
	"22K-3001": 3.21,
	"22K-3002": 3.89,
	"23K-5001": 0,
	"23K-5002": 0,
}

type profile int

const (
	profileAverage profile = iota
	profileLow
	profileExcellent
)

var attendanceProfiles = map[string]profile{
	"21K-1234": profileLow,
	"21K-1235": profileExcellent,
}

var demoCourses = []model.Course{
	{ID: "CS-101", Code: "CS-101", Name: "Introduction to Computing", CreditHours: 3, TeacherID: "T-5678", TeacherName: "Prof. Sarah Ahmed",
		Department: "Computer Science", Semester: 1, Students: []string{"23K-5001", "23K-5002"},
		Schedule: "Mon, Wed 9:00 AM - 10:30 AM", Room: "CS-Lab 1"},
	{ID: "CS-201", Code: "CS-201", Name: "Data Structures", CreditHours: 4, TeacherID: "T-5678", TeacherName: "Prof. Sarah Ahmed",
		Department: "Computer Science", Semester: 3, Students: []string{"22K-3001", "22K-3002"},
		Schedule: "Tue, Thu 11:00 AM - 12:30 PM", Room: "CS-Lab 2"},
	{ID: "CS-301", Code: "CS-301", Name: "Database Systems", CreditHours: 3, TeacherID: "T-5679", TeacherName: "Dr. Ali Hassan",
		Department: "Computer Science", Semester: 5, Students: []string{"21K-1234", "21K-1235", "21K-1236"},
		Schedule: "Mon, Wed 2:00 PM - 3:30 PM", Room: "CS-Lab 3"},
	{ID: "CS-401", Code: "CS-401", Name: "Software Engineering", CreditHours: 3, TeacherID: "T-5679", TeacherName: "Dr. Ali Hassan",
		Department: "Computer Science", Semester: 5, Students: []string{"21K-1234", "21K-1235", "21K-1236"},
		Schedule: "Tue, Thu 2:00 PM - 3:30 PM", Room: "Room 301"},
	{ID: "MATH-101", Code: "MATH-101", Name: "Calculus I", CreditHours: 3, TeacherID: "T-5680", TeacherName: "Ms. Fatima Zaidi",
		Department: "Mathematics", Semester: 1, Students: []string{"22K-3001", "22K-3002", "23K-5001", "23K-5002"},
		Schedule: "Mon, Wed, Fri 10:00 AM - 11:00 AM", Room: "Room 201"},
	{ID: "MATH-201", Code: "MATH-201", Name: "Linear Algebra", CreditHours: 3, TeacherID: "T-5680", TeacherName: "Ms. Fatima Zaidi",
		Department: "Mathematics", Semester: 3, Students: []string{"21K-1234", "21K-1235", "21K-1236"},
		Schedule: "Tue, Thu 10:00 AM - 11:30 AM", Room: "Room 202"},
}

var demoAssessments = []struct {
	name     string
	weight   float64
	maxMarks float64
}{
	{"Quiz 1", 5, 10},
	{"Quiz 2", 5, 10},
	{"Quiz 3", 5, 10},
	{"Assignment 1", 5, 20},
	{"Assignment 2", 5, 20},
	{"Assignment 3", 5, 20},
	{"Midterm", 25, 50},
	{"Final", 45, 100},
}

var demoNotifications = []struct {
	userID   string
	severity model.Severity
	title    string
	message  string
	read     bool
	age      time.Duration
}{
	{"21K-1234", model.SeverityWarning, "Low Attendance Alert",
		"Your attendance in CS-301 has dropped to 82%. Please maintain at least 85% attendance.", false, 2 * time.Hour},
	{"21K-1234", model.SeverityInfo, "New Grade Posted",
		"Midterm marks for CS-401 (Software Engineering) have been posted. Check your results.", false, 5 * time.Hour},
	{"21K-1234", model.SeveritySuccess, "Assignment Graded",
		"Your Assignment 2 in MATH-201 has been graded. You scored 18/20.", true, 24 * time.Hour},
	{"T-5679", model.SeverityInfo, "Pending Attendance",
		"You have not marked attendance for CS-301 today.", false, time.Hour},
	{"T-5679", model.SeverityWarning, "Student At Risk",
		"Ali Ibrahim (21K-1234) attendance has dropped below 85% in CS-301.", false, 3 * time.Hour},
	{"A-0001", model.SeverityDanger, "Policy Violation",
		"Multiple students have attendance below 80% in CS-301. Review required.", false, 6 * time.Hour},
}

var demoAudit = []struct {
	action, userID, userName, details string
	flagged                           bool
	age                               time.Duration
}{
	{audit.AttendanceMarked, "T-5679", "Dr. Ali Hassan", "Marked attendance for CS-301 - 3 students present", false, 2 * time.Hour},
	{audit.GradePosted, "T-5679", "Dr. Ali Hassan", "Posted Midterm grades for CS-401", false, 5 * time.Hour},
	{audit.UserLogin, "A-0001", "Dr. Ahmed Khan", "Admin logged in from 192.168.1.100", false, time.Hour},
	{audit.GradeModified, "T-5680", "Ms. Fatima Zaidi", "Modified Quiz 2 grade for student 22K-3001 in MATH-101", true, 24 * time.Hour},
}
