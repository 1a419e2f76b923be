package bulk

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/internal/servicerequests/lifecycle"
	"fleet_service_backend/internal/servicerequests/lifecycle/lifecycletest"
	"fleet_service_backend/internal/servicerequests/scheduling"
	"fleet_service_backend/platform/apperr"

	"github.com/google/uuid"
)

var clock = time.Date(2026, 7, 20, 6, 0, 0, 0, time.UTC)

type fakeQueue struct {
	mu    sync.Mutex
	items []RetryItem
}

func (q *fakeQueue) EnqueueBulkRetry(_ context.Context, item RetryItem) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func setup(t *testing.T) (*lifecycletest.Store, *Coordinator, *fakeQueue) {
	t.Helper()
	store := lifecycletest.New()
	engine := lifecycle.NewEngine(store, nil, nil, nil).WithClock(func() time.Time { return clock })
	queue := &fakeQueue{}
	return store, New(scheduling.New(engine), store, queue, nil, nil, 0), queue
}

func seed(store *lifecycletest.Store, status domain.Status) uuid.UUID {
	req := &domain.ServiceRequest{
		ID:         uuid.New(),
		Status:     status,
		CustomerID: uuid.New(),
		Title:      "PM service",
		CreatedAt:  clock.Add(-time.Hour),
		Version:    1,
	}
	store.Put(req)
	return req.ID
}

func dispatch() domain.Actor { return domain.Actor{UserID: uuid.New(), Role: domain.RoleDispatch} }

func TestApplyBulkReportsPartialSuccess(t *testing.T) {
	store, coordinator, queue := setup(t)
	first := seed(store, domain.StatusReadyToSchedule)
	second := seed(store, domain.StatusReadyToSchedule)
	third := seed(store, domain.StatusReadyToSchedule)
	store.FailSaves(third, errors.New("write timeout"))

	lead := uuid.New()
	when := clock.Add(24 * time.Hour)
	result, err := coordinator.ApplyBulk(context.Background(), dispatch(), Request{
		IDs: []uuid.UUID{first, second, third}, LeadTechnicianID: &lead, When: &when,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Succeeded != 2 || result.Failed != 1 || !result.Partial() {
		t.Fatalf("expected 2 of 3 scheduled, got %+v", result)
	}
	for i, id := range []uuid.UUID{first, second} {
		item := result.Items[i]
		if item.ID != id || !item.OK || item.Status != domain.StatusScheduled {
			t.Fatalf("expected item %d scheduled, got %+v", i, item)
		}
		got := store.Snapshot(id)
		if got.Status != domain.StatusScheduled || *got.LeadTechnicianID != lead || !got.ScheduledAt.Equal(when) {
			t.Fatalf("expected %s scheduled in store, got %+v", id, got)
		}
	}

	failed := result.Items[2]
	if failed.ID != third || failed.OK || failed.Error == "" || !failed.RetryQueued {
		t.Fatalf("expected third item failed and queued, got %+v", failed)
	}
	if got := store.Snapshot(third); got.Status != domain.StatusReadyToSchedule || got.LeadTechnicianID != nil {
		t.Fatalf("expected failed request unchanged, got %+v", got)
	}
	if len(queue.items) != 1 || queue.items[0].RequestID != third || queue.items[0].LeadTechnicianID != lead {
		t.Fatalf("expected one retry for the failed id, got %+v", queue.items)
	}
	if queue.items[0].ExpectedVersion != 1 {
		t.Fatalf("expected the retry pinned to version 1, got %d", queue.items[0].ExpectedVersion)
	}
	if ids := result.FailedIDs(); len(ids) != 1 || ids[0] != third {
		t.Fatalf("unexpected failed ids %v", ids)
	}
}

func TestApplyBulkRejectsIncompleteRequest(t *testing.T) {
	store, coordinator, _ := setup(t)
	id := seed(store, domain.StatusReadyToSchedule)
	lead := uuid.New()
	when := clock.Add(time.Hour)

	cases := map[string]Request{
		"no lead": {IDs: []uuid.UUID{id}, When: &when},
		"no time": {IDs: []uuid.UUID{id}, LeadTechnicianID: &lead},
		"no ids":  {LeadTechnicianID: &lead, When: &when},
	}
	for name, req := range cases {
		_, err := coordinator.ApplyBulk(context.Background(), dispatch(), req)
		if apperr.GetCode(err) != domain.CodeBulkRequestInvalid {
			t.Fatalf("%s: expected %s, got %v", name, domain.CodeBulkRequestInvalid, err)
		}
	}
	if store.Saves() != 0 {
		t.Fatalf("expected no writes, got %d", store.Saves())
	}
}

func TestApplyBulkDoesNotRetryPreconditionFailures(t *testing.T) {
	store, coordinator, queue := setup(t)
	ok := seed(store, domain.StatusReadyToSchedule)
	busy := seed(store, domain.StatusInProgress)
	missing := uuid.New()

	lead := uuid.New()
	when := clock.Add(time.Hour)
	result, err := coordinator.ApplyBulk(context.Background(), dispatch(), Request{
		IDs: []uuid.UUID{ok, busy, missing, ok}, LeadTechnicianID: &lead, When: &when,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 3 {
		t.Fatalf("expected duplicate id collapsed, got %d items", len(result.Items))
	}
	if result.Items[1].ErrorCode != domain.CodeTransitionNotAllowed || result.Items[1].ErrorKind != "validation" {
		t.Fatalf("expected precondition failure for in-progress job, got %+v", result.Items[1])
	}
	if result.Items[2].ErrorKind != "not_found" {
		t.Fatalf("expected not found for unknown id, got %+v", result.Items[2])
	}
	if result.RetryQueued != 0 || len(queue.items) != 0 {
		t.Fatalf("expected nothing queued, got %d", result.RetryQueued)
	}
}

func TestApplyBulkRequiresDispatch(t *testing.T) {
	store, coordinator, _ := setup(t)
	id := seed(store, domain.StatusReadyToSchedule)
	lead := uuid.New()
	when := clock.Add(time.Hour)

	_, err := coordinator.ApplyBulk(context.Background(), domain.Actor{UserID: uuid.New(), Role: domain.RoleOffice},
		Request{IDs: []uuid.UUID{id}, LeadTechnicianID: &lead, When: &when})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

type slowForcer struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *slowForcer) Force(_ context.Context, _ domain.Actor, _ uuid.UUID, _ scheduling.Assignment) (*domain.ServiceRequest, error) {
	n := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	f.inFlight.Add(-1)
	return &domain.ServiceRequest{Status: domain.StatusScheduled}, nil
}

func TestApplyBulkHonoursConcurrencyLimit(t *testing.T) {
	forcer := &slowForcer{}
	coordinator := New(forcer, nil, nil, nil, nil, 2)

	ids := make([]uuid.UUID, 8)
	for i := range ids {
		ids[i] = uuid.New()
	}
	lead := uuid.New()
	when := clock.Add(time.Hour)

	result, err := coordinator.ApplyBulk(context.Background(), dispatch(), Request{IDs: ids, LeadTechnicianID: &lead, When: &when})
	if err != nil || result.Succeeded != len(ids) {
		t.Fatalf("expected all scheduled, got %+v (%v)", result, err)
	}
	if peak := forcer.peak.Load(); peak > 2 {
		t.Fatalf("expected at most 2 concurrent writes, saw %d", peak)
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(apperr.Precondition(domain.CodeJobLocked, "locked")) {
		t.Fatalf("expected precondition failure not retryable")
	}
	if Retryable(domain.VersionConflict(1)) {
		t.Fatalf("expected conflict not retryable")
	}
	if !Retryable(errors.New("dial tcp: timeout")) {
		t.Fatalf("expected backend failure retryable")
	}
}

func TestApplyBulkReportsConflictWithoutRetry(t *testing.T) {
	store, coordinator, queue := setup(t)
	id := seed(store, domain.StatusReadyToSchedule)
	store.FailSaves(id, domain.VersionConflict(1))

	lead := uuid.New()
	when := clock.Add(24 * time.Hour)
	result, err := coordinator.ApplyBulk(context.Background(), dispatch(), Request{IDs: []uuid.UUID{id}, LeadTechnicianID: &lead, When: &when})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := result.Items[0]
	if item.OK || item.ErrorKind != "conflict" || item.ErrorCode != domain.CodeVersionConflict {
		t.Fatalf("expected a conflict reported for the item, got %+v", item)
	}
	if item.RetryQueued || len(queue.items) != 0 {
		t.Fatalf("expected no retry for a conflict, got %+v", queue.items)
	}
}

func TestApplyBulkWithoutReaderQueuesNothing(t *testing.T) {
	store := lifecycletest.New()
	engine := lifecycle.NewEngine(store, nil, nil, nil).WithClock(func() time.Time { return clock })
	queue := &fakeQueue{}
	coordinator := New(scheduling.New(engine), nil, queue, nil, nil, 0)
	id := seed(store, domain.StatusReadyToSchedule)
	store.FailSaves(id, errors.New("write timeout"))

	lead := uuid.New()
	when := clock.Add(24 * time.Hour)
	result, err := coordinator.ApplyBulk(context.Background(), dispatch(), Request{IDs: []uuid.UUID{id}, LeadTechnicianID: &lead, When: &when})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failed != 1 || result.RetryQueued != 0 || len(queue.items) != 0 {
		t.Fatalf("expected the failure reported but not queued, got %+v", result)
	}
}
