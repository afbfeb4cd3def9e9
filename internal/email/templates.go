package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// ClassReminderData fills the class reminder template.
type ClassReminderData struct {
	UserName      string
	ClassTitle    string
	StartTime     time.Time
	MinutesBefore int
	JoinURL       string
}

var classReminderTmpl = template.Must(template.New("class_reminder").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #2d3142; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #4f5d75;">Your class starts soon</h2>
  <p>Hi {{.UserName}},</p>
  <p><strong>{{.ClassTitle}}</strong> starts in {{.MinutesBefore}} minutes, at {{.StartTimeFormatted}}.</p>
  <p style="margin: 24px 0;">
    <a href="{{.JoinURL}}" style="background-color: #ef8354; color: #ffffff; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Join class</a>
  </p>
  <p style="color: #9a9a9a; font-size: 12px;">You are receiving this because you scheduled a reminder on your dashboard.</p>
</body>
</html>`))

// templateData wraps ClassReminderData with the preformatted time the
// template needs.
type templateData struct {
	ClassReminderData
	StartTimeFormatted string
}

// ClassReminderSubject builds the email subject line.
func ClassReminderSubject(classTitle string, minutesBefore int) string {
	return fmt.Sprintf("Reminder: %s starts in %d minutes", classTitle, minutesBefore)
}

// RenderClassReminder renders the class reminder HTML body.
func RenderClassReminder(data ClassReminderData) (string, error) {
	var buf bytes.Buffer
	err := classReminderTmpl.Execute(&buf, templateData{
		ClassReminderData:  data,
		StartTimeFormatted: data.StartTime.Local().Format("3:04 PM"),
	})
	if err != nil {
		return "", fmt.Errorf("render class reminder: %w", err)
	}

	return buf.String(), nil
}
