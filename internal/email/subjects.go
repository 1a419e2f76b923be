package email

const (
	subjectSchedulingProposedFmt = "Please confirm your service visit on %s"
	subjectVisitScheduled        = "Your service visit is scheduled"
	subjectVisitReminderFmt      = "Reminder: service visit on %s"
	subjectInspectionReportFmt   = "Inspection report: %s"
)
