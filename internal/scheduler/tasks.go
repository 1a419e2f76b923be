package scheduler

import (
	"encoding/json"
	"fmt"
	"time"

	"fleet_service_backend/internal/servicerequests/bulk"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskBulkScheduleRetry = "servicerequests.bulk_schedule_retry"

const TaskVisitReminder = "servicerequests.visit_reminder"

type BulkScheduleRetryPayload struct {
	RequestID         string  `json:"requestId"`
	ActorID           string  `json:"actorId"`
	LeadTechnicianID  string  `json:"leadTechnicianId"`
	BuddyTechnicianID *string `json:"buddyTechnicianId,omitempty"`
	ScheduledAt       string  `json:"scheduledAt"`
	ExpectedVersion   int     `json:"expectedVersion"`
	LastError         string  `json:"lastError,omitempty"`
}

type VisitReminderPayload struct {
	RequestID   string `json:"requestId"`
	ScheduledAt string `json:"scheduledAt"`
}

func NewBulkScheduleRetryTask(item bulk.RetryItem) (*asynq.Task, error) {
	payload := BulkScheduleRetryPayload{
		RequestID:        item.RequestID.String(),
		ActorID:          item.ActorID.String(),
		LeadTechnicianID: item.LeadTechnicianID.String(),
		ScheduledAt:      item.When.UTC().Format(time.RFC3339Nano),
		ExpectedVersion:  item.ExpectedVersion,
		LastError:        item.LastError,
	}
	if item.BuddyTechnicianID != nil {
		buddy := item.BuddyTechnicianID.String()
		payload.BuddyTechnicianID = &buddy
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBulkScheduleRetry, data), nil
}

// ParseBulkScheduleRetryPayload decodes a retry task back into the failed item.
func ParseBulkScheduleRetryPayload(task *asynq.Task) (bulk.RetryItem, error) {
	var payload BulkScheduleRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return bulk.RetryItem{}, err
	}

	item := bulk.RetryItem{ExpectedVersion: payload.ExpectedVersion, LastError: payload.LastError}
	var err error
	if item.RequestID, err = uuid.Parse(payload.RequestID); err != nil {
		return bulk.RetryItem{}, fmt.Errorf("invalid requestId: %w", err)
	}
	if item.ActorID, err = uuid.Parse(payload.ActorID); err != nil {
		return bulk.RetryItem{}, fmt.Errorf("invalid actorId: %w", err)
	}
	if item.LeadTechnicianID, err = uuid.Parse(payload.LeadTechnicianID); err != nil {
		return bulk.RetryItem{}, fmt.Errorf("invalid leadTechnicianId: %w", err)
	}
	if payload.BuddyTechnicianID != nil {
		buddy, err := uuid.Parse(*payload.BuddyTechnicianID)
		if err != nil {
			return bulk.RetryItem{}, fmt.Errorf("invalid buddyTechnicianId: %w", err)
		}
		item.BuddyTechnicianID = &buddy
	}
	if item.When, err = time.Parse(time.RFC3339Nano, payload.ScheduledAt); err != nil {
		return bulk.RetryItem{}, fmt.Errorf("invalid scheduledAt: %w", err)
	}
	return item, nil
}

func NewVisitReminderTask(requestID uuid.UUID, scheduledAt time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(VisitReminderPayload{
		RequestID:   requestID.String(),
		ScheduledAt: scheduledAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVisitReminder, data), nil
}

func ParseVisitReminderPayload(task *asynq.Task) (uuid.UUID, time.Time, error) {
	var payload VisitReminderPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return uuid.Nil, time.Time{}, err
	}
	id, err := uuid.Parse(payload.RequestID)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid requestId: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, payload.ScheduledAt)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("invalid scheduledAt: %w", err)
	}
	return id, at, nil
}

// visitReminderTaskID dedupes reminders for the same request and slot.
func visitReminderTaskID(requestID uuid.UUID, scheduledAt time.Time) string {
	return fmt.Sprintf("visit-reminder:%s:%d", requestID, scheduledAt.Unix())
}
