// Package email delivers customer-facing service notifications.
package email

import (
	"context"

	"fleet_service_backend/platform/config"
)

// Attachment is a file sent along with an email.
type Attachment struct {
	Content  []byte
	FileName string // e.g. "inspection-3f9c2b1e-20260602.pdf"
	MIMEType string
}

// Visit describes the appointment an email is about.
type Visit struct {
	CustomerName string
	Title        string
	ScheduledAt  string
	KeyLocation  string
}

// Report describes a completed job's inspection result.
type Report struct {
	CustomerName string
	Title        string
	Summary      string
	DownloadURL  string
}

type Sender interface {
	SendSchedulingProposedEmail(ctx context.Context, toEmail string, visit Visit) error
	SendVisitScheduledEmail(ctx context.Context, toEmail string, visit Visit) error
	SendVisitReminderEmail(ctx context.Context, toEmail string, visit Visit) error
	SendInspectionReportEmail(ctx context.Context, toEmail string, report Report, attachments ...Attachment) error
}

// NoopSender drops every message. Used when email is disabled.
type NoopSender struct{}

func (NoopSender) SendSchedulingProposedEmail(context.Context, string, Visit) error { return nil }
func (NoopSender) SendVisitScheduledEmail(context.Context, string, Visit) error     { return nil }
func (NoopSender) SendVisitReminderEmail(context.Context, string, Visit) error      { return nil }
func (NoopSender) SendInspectionReportEmail(context.Context, string, Report, ...Attachment) error {
	return nil
}

// NewSender returns an SMTP sender, or a NoopSender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}
