// Package notification sends customer emails in response to service request
// events. Domain modules publish events and never talk to SMTP or storage.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"fleet_service_backend/internal/adapters/storage"
	"fleet_service_backend/internal/email"
	"fleet_service_backend/internal/events"
	"fleet_service_backend/internal/pdf"
	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/inspection"
	"fleet_service_backend/platform/config"
	"fleet_service_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	visitTimeLayout   = "Mon 02 Jan 2006 15:04 MST"
	reportContentType = "application/pdf"
)

// RequestReader loads the current state of a service request.
type RequestReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.ServiceRequest, error)
}

// ReminderScheduler queues a visit reminder for delivery at runAt.
type ReminderScheduler interface {
	ScheduleVisitReminder(ctx context.Context, requestID uuid.UUID, scheduledAt, runAt time.Time) error
}

// Module handles all notification-related event subscriptions.
type Module struct {
	contacts  ContactReader
	requests  RequestReader
	sender    email.Sender
	cfg       config.NotificationConfig
	checklist *inspection.Checklist
	log       *logger.Logger

	storage   storage.StorageService
	reminders ReminderScheduler
	now       func() time.Time
}

// New creates a new notification module.
func New(contacts ContactReader, requests RequestReader, sender email.Sender, checklist *inspection.Checklist, cfg config.NotificationConfig, log *logger.Logger) *Module {
	if checklist == nil {
		checklist = inspection.DefaultChecklist()
	}
	return &Module{
		contacts:  contacts,
		requests:  requests,
		sender:    sender,
		cfg:       cfg,
		checklist: checklist,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetStorage enables uploading inspection reports. Without it reports are only attached.
func (m *Module) SetStorage(s storage.StorageService) { m.storage = s }

// SetReminderScheduler enables visit reminders.
func (m *Module) SetReminderScheduler(r ReminderScheduler) { m.reminders = r }

// RegisterHandlers subscribes the module to the events it reacts to.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.SchedulingProposed{}.EventName(), m)
	bus.Subscribe(events.ServiceRequestScheduled{}.EventName(), m)
	bus.Subscribe(events.ServiceRequestCompleted{}.EventName(), m)
	bus.Subscribe(events.VisitReminderDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.SchedulingProposed:
		return m.handleSchedulingProposed(ctx, e)
	case events.ServiceRequestScheduled:
		return m.handleScheduled(ctx, e)
	case events.ServiceRequestCompleted:
		return m.handleCompleted(ctx, e)
	case events.VisitReminderDue:
		return m.handleVisitReminderDue(ctx, e)
	default:
		return nil
	}
}

func (m *Module) handleSchedulingProposed(ctx context.Context, e events.SchedulingProposed) error {
	contact, ok := m.contact(ctx, e.CustomerID)
	if !ok {
		return nil
	}
	visit := email.Visit{
		CustomerName: contact.Greeting(),
		Title:        e.Title,
		ScheduledAt:  formatVisitTime(e.ScheduledAt),
	}
	if err := m.sender.SendSchedulingProposedEmail(ctx, contact.Email, visit); err != nil {
		m.log.Error("failed to send scheduling proposal email", "requestId", e.RequestID, "error", err)
		return err
	}
	return nil
}

func (m *Module) handleScheduled(ctx context.Context, e events.ServiceRequestScheduled) error {
	if e.ScheduledAt == nil {
		return nil
	}
	m.scheduleReminder(ctx, e.RequestID, *e.ScheduledAt)

	contact, ok := m.contact(ctx, e.CustomerID)
	if !ok {
		return nil
	}
	visit := email.Visit{
		CustomerName: contact.Greeting(),
		Title:        e.Title,
		ScheduledAt:  formatVisitTime(*e.ScheduledAt),
		KeyLocation:  m.keyLocation(ctx, e.RequestID),
	}
	if err := m.sender.SendVisitScheduledEmail(ctx, contact.Email, visit); err != nil {
		m.log.Error("failed to send visit scheduled email", "requestId", e.RequestID, "error", err)
		return err
	}
	return nil
}

func (m *Module) scheduleReminder(ctx context.Context, requestID uuid.UUID, scheduledAt time.Time) {
	if m.reminders == nil {
		return
	}
	now := m.now()
	if !scheduledAt.After(now) {
		return
	}
	runAt := scheduledAt.Add(-m.cfg.GetReminderLeadTime())
	if runAt.Before(now) {
		runAt = now
	}
	if err := m.reminders.ScheduleVisitReminder(ctx, requestID, scheduledAt, runAt); err != nil {
		m.log.Warn("failed to schedule visit reminder", "requestId", requestID, "error", err)
	}
}

func (m *Module) handleVisitReminderDue(ctx context.Context, e events.VisitReminderDue) error {
	contact, ok := m.contact(ctx, e.CustomerID)
	if !ok {
		return nil
	}
	visit := email.Visit{
		CustomerName: contact.Greeting(),
		Title:        e.Title,
		ScheduledAt:  formatVisitTime(e.ScheduledAt),
		KeyLocation:  m.keyLocation(ctx, e.RequestID),
	}
	if err := m.sender.SendVisitReminderEmail(ctx, contact.Email, visit); err != nil {
		m.log.Error("failed to send visit reminder email", "requestId", e.RequestID, "error", err)
		return err
	}
	return nil
}

func (m *Module) handleCompleted(ctx context.Context, e events.ServiceRequestCompleted) error {
	contact, ok := m.contact(ctx, e.CustomerID)
	if !ok {
		return nil
	}

	findings := inspection.Decode(e.Report).Findings()
	report := email.Report{
		CustomerName: contact.Greeting(),
		Title:        e.Title,
		Summary:      summarize(findings),
	}

	content, err := pdf.GenerateInspectionReportPDF(pdf.InspectionReportData{
		RequestID:    e.RequestID.String(),
		Title:        e.Title,
		CustomerName: contact.CustomerName,
		CompanyName:  m.cfg.GetEmailFromName(),
		CompletedAt:  e.CompletedAt,
		Technicians:  technicianLabels(e.LeadTechnicianID, e.BuddyTechnicianID),
		Points:       m.checklist.Points(),
		Findings:     findings,
	})
	if err != nil {
		m.log.Error("failed to render inspection report", "requestId", e.RequestID, "error", err)
		return m.sender.SendInspectionReportEmail(ctx, contact.Email, report)
	}

	fileName := pdf.FileName(e.RequestID.String(), e.CompletedAt)
	if url := m.storeReport(ctx, e.RequestID, fileName, content); url != "" {
		report.DownloadURL = url
	}

	attachment := email.Attachment{Content: content, FileName: fileName, MIMEType: reportContentType}
	if err := m.sender.SendInspectionReportEmail(ctx, contact.Email, report, attachment); err != nil {
		m.log.Error("failed to send inspection report email", "requestId", e.RequestID, "error", err)
		return err
	}
	return nil
}

// storeReport uploads the PDF and returns a download link, or "" when storage is
// unavailable. A storage failure never blocks the email.
func (m *Module) storeReport(ctx context.Context, requestID uuid.UUID, fileName string, content []byte) string {
	if m.storage == nil {
		return ""
	}
	bucket := m.cfg.GetMinioBucketInspectionReports()
	key, err := m.storage.UploadFile(ctx, bucket, "reports/"+requestID.String(), fileName, reportContentType, bytes.NewReader(content), int64(len(content)))
	if err != nil {
		m.log.Warn("failed to upload inspection report", "requestId", requestID, "error", err)
		return ""
	}
	link, err := m.storage.GenerateDownloadURL(ctx, bucket, key)
	if err != nil {
		m.log.Warn("failed to presign inspection report", "requestId", requestID, "error", err)
		return ""
	}
	return link.URL
}

// contact returns the account contact, or false when there is nobody to email.
func (m *Module) contact(ctx context.Context, customerID uuid.UUID) (Contact, bool) {
	c, err := m.contacts.GetContact(ctx, customerID)
	if err != nil {
		m.log.Warn("failed to resolve customer contact", "customerId", customerID, "error", err)
		return Contact{}, false
	}
	if strings.TrimSpace(c.Email) == "" {
		m.log.Debug("customer has no email address, skipping notification", "customerId", customerID)
		return Contact{}, false
	}
	return c, true
}

func (m *Module) keyLocation(ctx context.Context, requestID uuid.UUID) string {
	if m.requests == nil {
		return ""
	}
	req, err := m.requests.Get(ctx, requestID)
	if err != nil || req.KeyLocation == nil {
		return ""
	}
	return *req.KeyLocation
}

func formatVisitTime(t time.Time) string {
	return t.UTC().Format(visitTimeLayout)
}

func summarize(findings inspection.Findings) string {
	var urgent, recommended, good int
	for _, s := range findings {
		switch s {
		case inspection.SeverityUrgent:
			urgent++
		case inspection.SeverityRecommended:
			recommended++
		case inspection.SeverityGood:
			good++
		}
	}
	return fmt.Sprintf("%d urgent, %d recommended, %d good", urgent, recommended, good)
}

func technicianLabels(lead, buddy *uuid.UUID) []string {
	var out []string
	if lead != nil {
		out = append(out, "Lead "+lead.String()[:8])
	}
	if buddy != nil {
		out = append(out, "Buddy "+buddy.String()[:8])
	}
	return out
}
