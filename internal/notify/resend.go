package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/resend/resend-go/v2"
)

// EmailService abstracts the Resend emails endpoint for testing.
type EmailService interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Resend sends digests as HTML e-mail through the Resend API.
type Resend struct {
	emails       EmailService
	from         string
	dashboardURL string
}

// NewResend creates a Resend notifier.
func NewResend(apiKey, from, dashboardURL string) *Resend {
	client := resend.NewClient(apiKey)
	return newResendWithService(client.Emails, from, dashboardURL)
}

func newResendWithService(emails EmailService, from, dashboardURL string) *Resend {
	return &Resend{emails: emails, from: from, dashboardURL: dashboardURL}
}

// Notify sends one digest e-mail.
func (r *Resend) Notify(ctx context.Context, d Digest) error {
	if d.Email == "" {
		return ErrNoRecipient
	}

	body, err := r.digestHTML(d)
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	_, err = r.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{d.Email},
		Subject: digestSubject(d),
		Html:    body,
	})
	if err != nil {
		return fmt.Errorf("send digest: %w", err)
	}
	return nil
}

func digestSubject(d Digest) string {
	return fmt.Sprintf("Orbit: You have %d pending tasks", d.PendingCount)
}

var digestTemplate = template.Must(template.New("digest").Parse(
	`<div style="font-family: sans-serif; padding: 20px;">` +
		`<h2>Good Morning!</h2>` +
		`<p>You have <strong>{{.PendingCount}}</strong> pending tasks for your goal.</p>` +
		`<p>Top priority: <strong>{{.TopTask}}</strong></p>` +
		`{{if .DashboardURL}}<a href="{{.DashboardURL}}" style="background: #2563eb; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Open Dashboard</a>{{end}}` +
		`</div>`))

func (r *Resend) digestHTML(d Digest) (string, error) {
	top := d.TopTaskTitle
	if top == "" {
		top = "Check your dashboard"
	}

	var b strings.Builder
	err := digestTemplate.Execute(&b, struct {
		PendingCount int
		TopTask      string
		DashboardURL string
	}{d.PendingCount, top, r.dashboardURL})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
