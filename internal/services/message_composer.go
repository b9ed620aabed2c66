package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/redpotato/backend/internal/locales"
	"github.com/redpotato/backend/internal/models"
)

// UrgentThresholdDays is the remaining-days count at or below which emails use the urgent style.
const UrgentThresholdDays = 3

const (
	colorUrgent = "#ef4444"
	colorNormal = "#f59e0b"
	dateLayout  = "02.01.2006"
)

// ContactInfo is the service contact block printed in every email.
type ContactInfo struct {
	Phone string
	Email string
}

// ComposedMessage is the channel-specific content for one reminder.
type ComposedMessage struct {
	Locale        string
	DaysRemaining int
	Expired       bool
	Urgent        bool
	SMSText       string
	EmailSubject  string
	EmailHTML     string
}

// MessageComposer renders reminder content. It holds no state beyond its
// settings, so the same inputs always yield the same output.
type MessageComposer struct {
	DefaultLocale string
	Location      *time.Location
	Contact       ContactInfo
}

// LocaleFor picks the client's own locale when supported, else the
// configured default, else the fallback locale.
func (m MessageComposer) LocaleFor(client models.Client) string {
	if locales.IsSupported(client.Locale) {
		return locales.Resolve(client.Locale)
	}
	return locales.Resolve(m.DefaultLocale)
}

// Compose renders SMS text, email subject and email HTML for a client.
func (m MessageComposer) Compose(client models.Client, daysRemaining int, locale string) (ComposedMessage, error) {
	locale = locales.Resolve(locale)
	tr := locales.Get(locale)

	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}

	msg := ComposedMessage{
		Locale:        locale,
		DaysRemaining: daysRemaining,
		Expired:       daysRemaining <= 0,
		Urgent:        daysRemaining <= UrgentThresholdDays,
	}

	vars := map[string]string{
		"name":         client.Name,
		"licensePlate": client.LicensePlate,
		"days":         strconv.Itoa(daysRemaining),
		"daysWord":     pluralDays(daysRemaining, tr.SMS.Day, tr.SMS.Days),
		"date":         client.ITPExpirationDate.In(loc).Format(dateLayout),
	}

	if msg.Expired {
		msg.SMSText = locales.Interpolate(tr.SMS.Expired, vars)
		msg.EmailSubject = locales.Interpolate(tr.Email.SubjectExpired, vars)
	} else {
		msg.SMSText = locales.Interpolate(tr.SMS.Reminder, vars)
		msg.EmailSubject = locales.Interpolate(tr.Email.Subject, vars)
		if msg.Urgent {
			msg.EmailSubject = fmt.Sprintf("[%s] %s", tr.Email.Urgent, msg.EmailSubject)
		}
	}

	html, err := m.renderEmail(client, msg, tr.Email, vars["date"])
	if err != nil {
		return msg, err
	}
	msg.EmailHTML = html
	return msg, nil
}

func pluralDays(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

type emailView struct {
	T             locales.Email
	Color         template.CSS
	Name          string
	LicensePlate  string
	Date          string
	TimeRemaining string
	Expired       bool
	ContactPhone  string
	ContactEmail  string
}

func (m MessageComposer) renderEmail(client models.Client, msg ComposedMessage, tr locales.Email, date string) (string, error) {
	view := emailView{
		T:            tr,
		Color:        colorNormal,
		Name:         client.Name,
		LicensePlate: client.LicensePlate,
		Date:         date,
		Expired:      msg.Expired,
		ContactPhone: m.Contact.Phone,
		ContactEmail: m.Contact.Email,
	}
	if msg.Urgent {
		view.Color = colorUrgent
	}
	if msg.Expired {
		view.TimeRemaining = tr.Expired
	} else {
		view.TimeRemaining = fmt.Sprintf("%d %s", msg.DaysRemaining, pluralDays(msg.DaysRemaining, tr.Day, tr.Days))
	}

	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

var emailTemplate = template.Must(template.New("itp-reminder").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
    .container { max-width: 600px; margin: 0 auto; padding: 20px; }
    .header { background-color: {{.Color}}; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
    .content { background-color: #f9f9f9; padding: 30px; border: 1px solid #ddd; border-radius: 0 0 5px 5px; }
    .highlight { background-color: #fff; padding: 15px; margin: 20px 0; border-left: 4px solid {{.Color}}; }
    .footer { text-align: center; margin-top: 20px; color: #666; font-size: 14px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header"><h1>{{.T.Title}}</h1></div>
    <div class="content">
      <p>{{.T.Greeting}} <strong>{{.Name}}</strong>,</p>
      <div class="highlight">
        <p>{{.T.Intro}}</p>
        <ul>
          <li><strong>{{.T.RegistrationNumber}}:</strong> {{.LicensePlate}}</li>
          <li><strong>{{.T.ExpirationDate}}:</strong> {{.Date}}</li>
          <li><strong>{{.T.TimeRemaining}}:</strong> {{.TimeRemaining}}</li>
        </ul>
      </div>
      {{if .Expired}}<p style="color: #ef4444; font-weight: bold;">{{.T.WarningExpired}}</p>{{else}}<p>{{.T.ScheduleMessage}}</p>{{end}}
      <p><strong>{{.T.ContactTitle}}:</strong><br>
      {{.T.Phone}}: {{.ContactPhone}}<br>
      {{.T.Email}}: {{.ContactEmail}}</p>
      <p>{{.T.Regards}},<br><strong>{{.T.Team}}</strong></p>
    </div>
    <div class="footer"><p>{{.T.Footer}}</p></div>
  </div>
</body>
</html>
`))
