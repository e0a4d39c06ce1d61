// services/mail_templates.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"mandate-portal/models"
)

const (
	subjectConfirmation = "Bestätigung Ihrer Mandatserteilung - META Datenschutzklage"
	subjectReminder     = "Erinnerung: Bitte unterzeichnen Sie Ihre Vollmacht - META Datenschutzklage"
	subjectMagicLink    = "Ihr Login-Link für das Partner-Portal - META Datenschutzklage"
)

const mailLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <style>
    body { font-family: 'Segoe UI', Tahoma, Geneva, sans-serif; line-height: 1.6; color: #1e3a5f; }
    .container { max-width: 600px; margin: 0 auto; padding: 40px 20px; }
    .content { background: #f8f9fa; padding: 30px; border-radius: 8px; }
    .button { display: inline-block; background: #c9a227; color: #fff; padding: 12px 24px; border-radius: 6px; text-decoration: none; }
    .footer { margin-top: 30px; text-align: center; font-size: 12px; color: #666; }
    table td { padding: 8px; border-bottom: 1px solid #eee; }
  </style>
</head>
<body>
  <div class="container">
    <div class="content">{{template "body" .}}</div>
    <div class="footer">
      <p>Diese E-Mail wurde automatisch versendet. Bitte antworten Sie nicht direkt auf diese E-Mail.</p>
      <p>&copy; {{.Year}} META Datenschutzklage | meta-datenschutzklage.de</p>
    </div>
  </div>
</body>
</html>{{end}}`

var (
	confirmationTmpl = mustMailTemplate("confirmation", `{{define "body"}}
<h1>Vielen Dank für Ihre Mandatserteilung</h1>
<p>Sehr geehrte/r {{.Mandate.Vorname}} {{.Mandate.Nachname}},</p>
<p>wir haben Ihre Mandatserteilung erfolgreich erhalten und werden uns zeitnah bei Ihnen melden.</p>
{{with deref .Mandate.Versicherungsnummer}}<p><strong>Ihre Versicherungsnummer:</strong> {{.}}</p>{{end}}
{{if .SigningURL}}<p>Bitte unterzeichnen Sie jetzt Ihre Vollmacht, damit wir für Sie tätig werden können:</p>
<p><a class="button" href="{{.SigningURL}}">Vollmacht unterzeichnen</a></p>{{end}}
<p>Mit freundlichen Grüßen,<br>Ihr Team von META Datenschutzklage</p>
{{end}}`)

	notificationTmpl = mustMailTemplate("notification", `{{define "body"}}
<h1>Neues Mandat eingegangen</h1>
<table>
  <tr><td>Name:</td><td>{{.Mandate.Vorname}} {{.Mandate.Nachname}}</td></tr>
  <tr><td>E-Mail:</td><td>{{.Mandate.Email}}</td></tr>
  <tr><td>Telefon:</td><td>{{or (deref .Mandate.Telefon) "Nicht angegeben"}}</td></tr>
  <tr><td>Adresse:</td><td>{{.Mandate.Adresse}}, {{.Mandate.PLZ}} {{.Mandate.Wohnort}}</td></tr>
  <tr><td>Geburtsdatum:</td><td>{{date .Mandate.Geburtsdatum}}</td></tr>
  <tr><td>Instagram Account seit:</td><td>{{or (dateptr .Mandate.InstagramAccountDatum) "Nicht angegeben"}}</td></tr>
  <tr><td>Facebook Account seit:</td><td>{{or (dateptr .Mandate.FacebookAccountDatum) "Nicht angegeben"}}</td></tr>
  <tr><td>Versicherer:</td><td>{{or (deref .Mandate.Versicherer) "Nicht angegeben"}}</td></tr>
  <tr><td>Versicherungsnummer:</td><td>{{or (deref .Mandate.Versicherungsnummer) "Nicht angegeben"}}</td></tr>
  <tr><td>Versicherungs-Abschlussdatum:</td><td>{{or (dateptr .Mandate.VersicherungsAbschlussdatum) "Nicht angegeben"}}</td></tr>
  <tr><td>Versicherungsnehmer:</td><td>{{or (deref .Mandate.Versicherungsnehmer) "Nicht angegeben"}}</td></tr>
  {{with deref .Mandate.VersicherungsnehmerVerhaeltnis}}<tr><td>Verhältnis zum VN:</td><td>{{.}}</td></tr>{{end}}
  {{with .PartnerName}}<tr><td>Partner:</td><td>{{.}}</td></tr>{{end}}
</table>
{{end}}`)

	reminderTmpl = mustMailTemplate("reminder", `{{define "body"}}
<h1>Ihre Vollmacht wartet auf Ihre Unterschrift</h1>
<p>Sehr geehrte/r {{.Mandate.Vorname}} {{.Mandate.Nachname}},</p>
<p>Ihre Vollmacht ist noch nicht unterzeichnet. Ohne Vollmacht können wir leider nicht für Sie tätig werden.</p>
<p><a class="button" href="{{.SigningURL}}">Vollmacht jetzt unterzeichnen</a></p>
<p>Mit freundlichen Grüßen,<br>Ihr Team von META Datenschutzklage</p>
{{end}}`)

	magicLinkTmpl = mustMailTemplate("magic-link", `{{define "body"}}
<h1>Login zum Partner-Portal</h1>
<p>Hallo {{.PartnerName}},</p>
<p>mit dem folgenden Link können Sie sich im Partner-Portal anmelden. Der Link ist eine Stunde gültig und kann nur einmal verwendet werden.</p>
<p><a class="button" href="{{.LoginURL}}">Jetzt anmelden</a></p>
<p>Falls Sie diesen Link nicht angefordert haben, können Sie diese E-Mail ignorieren.</p>
{{end}}`)
)

type mailData struct {
	Mandate     *models.Mandate
	SigningURL  string
	PartnerName string
	LoginURL    string
	Year        int
}

var mailFuncs = template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"date": func(t time.Time) string { return t.Format("02.01.2006") },
	"dateptr": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("02.01.2006")
	},
}

func mustMailTemplate(name, body string) *template.Template {
	t := template.Must(template.New(name).Funcs(mailFuncs).Parse(mailLayout))
	return template.Must(t.Parse(body))
}

func renderMail(t *template.Template, data mailData) (string, error) {
	if data.Year == 0 {
		data.Year = time.Now().Year()
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s mail: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// ConfirmationMail is sent to the client after intake. signingURL may be empty.
func ConfirmationMail(m *models.Mandate, signingURL string) (Message, error) {
	html, err := renderMail(confirmationTmpl, mailData{Mandate: m, SigningURL: signingURL})
	if err != nil {
		return Message{}, err
	}
	return Message{To: m.Email, Subject: subjectConfirmation, HTML: html, Kind: "confirmation"}, nil
}

// NotificationMail informs the firm about a new mandate.
func NotificationMail(to string, m *models.Mandate, partnerName string) (Message, error) {
	html, err := renderMail(notificationTmpl, mailData{Mandate: m, PartnerName: partnerName})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: "Neues Mandat: " + m.FullName(), HTML: html, Kind: "notification"}, nil
}

func ReminderMail(m *models.Mandate, signingURL string) (Message, error) {
	html, err := renderMail(reminderTmpl, mailData{Mandate: m, SigningURL: signingURL})
	if err != nil {
		return Message{}, err
	}
	return Message{To: m.Email, Subject: subjectReminder, HTML: html, Kind: "reminder"}, nil
}

func MagicLinkMail(to, partnerName, loginURL string) (Message, error) {
	html, err := renderMail(magicLinkTmpl, mailData{PartnerName: partnerName, LoginURL: loginURL})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subjectMagicLink, HTML: html, Kind: "magic-link"}, nil
}
