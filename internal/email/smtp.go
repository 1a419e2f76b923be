package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg, err := s.buildMessage(toEmail, subject, htmlContent, attachments...)
	if err != nil {
		return err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) buildMessage(toEmail, subject, htmlContent string, attachments ...Attachment) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		var fileOpts []gomail.FileOption
		if att.MIMEType != "" {
			fileOpts = append(fileOpts, gomail.WithFileContentType(gomail.ContentType(att.MIMEType)))
		}
		if err := msg.AttachReader(att.FileName, bytes.NewReader(att.Content), fileOpts...); err != nil {
			return nil, fmt.Errorf("smtp attach %s: %w", att.FileName, err)
		}
	}
	return msg, nil
}

func (s *SMTPSender) SendSchedulingProposedEmail(ctx context.Context, toEmail string, visit Visit) error {
	content, err := renderEmailTemplate("scheduling_proposed.html", visitEmailData{
		baseEmailData: baseEmailData{
			Title:      "Please confirm your service visit",
			Heading:    "Please confirm your service visit",
			Subheading: visit.Title,
		},
		Visit: visit,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectSchedulingProposedFmt, visit.ScheduledAt), content)
}

func (s *SMTPSender) SendVisitScheduledEmail(ctx context.Context, toEmail string, visit Visit) error {
	content, err := renderEmailTemplate("visit_scheduled.html", visitEmailData{
		baseEmailData: baseEmailData{
			Title:      "Service visit scheduled",
			Heading:    "Service visit scheduled",
			Subheading: visit.Title,
		},
		Visit: visit,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectVisitScheduled, content)
}

func (s *SMTPSender) SendVisitReminderEmail(ctx context.Context, toEmail string, visit Visit) error {
	content, err := renderEmailTemplate("visit_reminder.html", visitEmailData{
		baseEmailData: baseEmailData{
			Title:      "Upcoming service visit",
			Heading:    "Upcoming service visit",
			Subheading: visit.Title,
		},
		Visit: visit,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectVisitReminderFmt, visit.ScheduledAt), content)
}

func (s *SMTPSender) SendInspectionReportEmail(ctx context.Context, toEmail string, report Report, attachments ...Attachment) error {
	data := inspectionReportEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your inspection report",
			Heading: "Your inspection report",
		},
		CustomerName:   report.CustomerName,
		RequestTitle:   report.Title,
		Summary:        report.Summary,
		HasAttachments: len(attachments) > 0,
	}
	if report.DownloadURL != "" {
		data.CTALabel = "Download report"
		data.CTAURL = report.DownloadURL
	}
	content, err := renderEmailTemplate("inspection_report.html", data)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectInspectionReportFmt, report.Title), content, attachments...)
}
