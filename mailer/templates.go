package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	newReportTmpl = template.Must(template.New("newReport").Parse(`<h2>New issue reported: {{.Title}}</h2>
<p><strong>Category:</strong> {{.Category}}</p>
<p><strong>Reported by:</strong> {{.Reporter}}</p>
<p>{{.Description}}</p>
{{if .Link}}<p><a href="{{.Link}}">View on the dashboard</a></p>{{end}}`))

	verifyTmpl = template.Must(template.New("verify").Parse(
		`<p>Hello {{.Name}},</p><p>Click <a href="{{.Link}}">here</a> to verify your account.</p>`))

	resetTmpl = template.Must(template.New("reset").Parse(
		`<p>You requested a password reset.</p><p>Click <a href="{{.Link}}">here</a> to choose a new password. The link expires in 10 minutes.</p>`))
)

// NewReportData feeds the new-report notification template.
type NewReportData struct {
	Title       string
	Category    string
	Reporter    string
	Description string
	Link        string
}

// NewReportMessage builds the single bulk notification for a new report.
func NewReportMessage(recipients []string, data NewReportData) (*Message, error) {
	body, err := render(newReportTmpl, data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Bcc:     recipients,
		Subject: fmt.Sprintf("New %s report: %s", data.Category, data.Title),
		HTML:    body,
	}, nil
}

func VerificationMessage(to, name, link string) (*Message, error) {
	body, err := render(verifyTmpl, map[string]string{"Name": name, "Link": link})
	if err != nil {
		return nil, err
	}
	return &Message{To: []string{to}, Subject: "Verify your CIMA account", HTML: body}, nil
}

func PasswordResetMessage(to, link string) (*Message, error) {
	body, err := render(resetTmpl, map[string]string{"Link": link})
	if err != nil {
		return nil, err
	}
	return &Message{To: []string{to}, Subject: "Reset your CIMA password", HTML: body}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
