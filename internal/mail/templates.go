package mail

import (
	"bytes"
	"html/template"
	"strconv"

	"github.com/juju/errors"
)

const footer = `<hr>
<p style="color: #999; font-size: 12px;">AMAL-NAMA - Student Attendance &amp; Result Management System</p>`

var templates = map[string]*template.Template{
	TypeCriticalAttendance: template.Must(template.New(TypeCriticalAttendance).Parse(`<h2>Critical Attendance Alert</h2>
<p>Dear {{.studentName}},</p>
<p>Your attendance in <strong>{{.courseName}}</strong> has dropped to <strong>{{.attendance}}%</strong>.</p>
<p>This is below the minimum required 80%. <strong>Please attend classes immediately.</strong></p>
<p>If you have any questions, contact your teacher or the administration office.</p>
` + footer)),
	TypeGradeNotification: template.Must(template.New(TypeGradeNotification).Funcs(template.FuncMap{
		"pct": percent,
	}).Parse(`<h2>New Grade Posted</h2>
<p>Dear {{.studentName}},</p>
<p>Your grade for <strong>{{.assessmentType}}</strong> in {{.courseName}} has been posted.</p>
<p><strong>Marks: {{.obtainedMarks}}/{{.maxMarks}}</strong> ({{pct .percentage}}%)</p>
<p>Log in to your AMAL-NAMA account to see detailed feedback.</p>
` + footer)),
}

// Render produces the HTML message for req.
func Render(req Request) (Message, error) {
	tmpl, ok := templates[req.Type]
	if !ok {
		return Message{}, errors.NotValidf("email type %q", req.Type)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, req.Data); err != nil {
		return Message{}, errors.NewNotValid(err, "render "+req.Type)
	}
	return Message{To: req.To, Subject: req.Subject, HTML: buf.String()}, nil
}

// percent formats a JSON number with one decimal place.
func percent(v any) string {
	switch n := v.(type) {
	case float64:
		return formatOne(n)
	case float32:
		return formatOne(float64(n))
	case int:
		return formatOne(float64(n))
	case int64:
		return formatOne(float64(n))
	}
	return "0.0"
}

func formatOne(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
