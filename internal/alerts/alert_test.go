package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"fleet_service_backend/internal/events"
	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/platform/apperr"
	"fleet_service_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var clock = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu     sync.Mutex
	alerts []Alert
}

func (s *memoryStore) Insert(_ context.Context, alerts []Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alerts...)
	return nil
}

func (s *memoryStore) ListFor(_ context.Context, v Viewer, since time.Time, limit int) ([]Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for _, a := range s.alerts {
		if a.Visible(v) && a.CreatedAt.After(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) MarkRead(_ context.Context, v Viewer, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id && s.alerts[i].Visible(v) {
			s.alerts[i].ReadAt = &at
			return nil
		}
	}
	return apperr.NotFound("alert not found")
}

func kinds(alerts []Alert) map[domain.Role][]Kind {
	out := make(map[domain.Role][]Kind)
	for _, a := range alerts {
		out[a.Audience] = append(out[a.Audience], a.Kind)
	}
	return out
}

func TestAlertsForTransitions(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name   string
		event  events.ServiceRequestTransitioned
		expect map[domain.Role]Kind
	}{
		{
			name:   "office approves for dispatch",
			event:  events.ServiceRequestTransitioned{Action: "approve_dispatch", From: "WAITING_APPROVAL", To: "READY_TO_SCHEDULE"},
			expect: map[domain.Role]Kind{domain.RoleDispatch: KindReadyToSchedule},
		},
		{
			name:   "override into attention required",
			event:  events.ServiceRequestTransitioned{Action: "override", From: "SCHEDULED", To: "ATTENTION_REQUIRED"},
			expect: map[domain.Role]Kind{domain.RoleOffice: KindActionRequired},
		},
		{
			name:  "customer declines",
			event: events.ServiceRequestTransitioned{Action: "decline", From: "NEW", To: "CANCELED"},
			expect: map[domain.Role]Kind{
				domain.RoleOffice:   KindDeclined,
				domain.RoleDispatch: KindDeclined,
			},
		},
		{
			name:   "technician sends back",
			event:  events.ServiceRequestTransitioned{Action: "reschedule", From: "SCHEDULED", To: "READY_TO_SCHEDULE"},
			expect: map[domain.Role]Kind{domain.RoleDispatch: KindRescheduleNeeded},
		},
		{
			name:   "note without status change",
			event:  events.ServiceRequestTransitioned{Action: "add_note", From: "AT_SHOP", To: "AT_SHOP"},
			expect: map[domain.Role]Kind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.event.BaseEvent = events.NewBaseEventAt(clock)
			tt.event.RequestID = id
			got := kinds(alertsFor(tt.event))
			if len(got) != len(tt.expect) {
				t.Fatalf("expected %v, got %v", tt.expect, got)
			}
			for role, kind := range tt.expect {
				if len(got[role]) != 1 || got[role][0] != kind {
					t.Fatalf("expected %s for %s, got %v", kind, role, got[role])
				}
			}
		})
	}
}

func TestScheduledAlertsReachCustomerAndCrew(t *testing.T) {
	lead, buddy, customer := uuid.New(), uuid.New(), uuid.New()
	at := clock.Add(24 * time.Hour)
	out := alertsFor(events.ServiceRequestScheduled{
		BaseEvent:         events.NewBaseEventAt(clock),
		RequestID:         uuid.New(),
		CustomerID:        customer,
		LeadTechnicianID:  lead,
		BuddyTechnicianID: &buddy,
		ScheduledAt:       &at,
		Title:             "PM service",
	})
	if len(out) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(out))
	}

	if !out[0].Visible(Viewer{UserID: uuid.New(), Role: domain.RoleCustomer, CustomerID: &customer}) {
		t.Fatal("expected the customer on the account to see the alert")
	}
	other := uuid.New()
	if out[0].Visible(Viewer{UserID: uuid.New(), Role: domain.RoleCustomer, CustomerID: &other}) {
		t.Fatal("expected other accounts not to see the alert")
	}
	if !out[1].Visible(Viewer{UserID: lead, Role: domain.RoleTechnician}) {
		t.Fatal("expected the lead to see the assignment")
	}
	if out[1].Visible(Viewer{UserID: buddy, Role: domain.RoleTechnician}) {
		t.Fatal("expected the lead's alert to be private")
	}
	if !out[2].Visible(Viewer{UserID: buddy, Role: domain.RoleTechnician}) {
		t.Fatal("expected the buddy to see the assignment")
	}
}

func TestBulkFailuresAlertTheDispatcher(t *testing.T) {
	actor := uuid.New()
	out := alertsFor(events.BulkScheduled{
		BaseEvent: events.NewBaseEventAt(clock),
		ActorID:   actor,
		Succeeded: []uuid.UUID{uuid.New()},
		Failed:    []uuid.UUID{uuid.New(), uuid.New()},
	})
	if len(out) != 2 {
		t.Fatalf("expected one alert per failed id, got %d", len(out))
	}
	for _, a := range out {
		if a.RecipientID == nil || *a.RecipientID != actor || a.Kind != KindBulkItemFailed {
			t.Fatalf("unexpected alert %+v", a)
		}
	}
}

func TestFeedPollingAndMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &memoryStore{}
	svc := NewService(store, nil)
	svc.now = func() time.Time { return clock }

	requestID := uuid.New()
	for i, to := range []string{"READY_TO_SCHEDULE", "ATTENTION_REQUIRED"} {
		err := svc.Record(context.Background(), events.ServiceRequestTransitioned{
			BaseEvent: events.NewBaseEventAt(clock.Add(time.Duration(i) * time.Minute)),
			RequestID: requestID,
			Action:    "override",
			From:      "NEW",
			To:        to,
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	dispatcher := uuid.New()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, dispatcher)
		c.Set(httpkit.ContextRolesKey, []string{"dispatch"})
		c.Next()
	})
	NewHandler(svc, 30*time.Second).RegisterRoutes(r.Group("/alerts"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(PollIntervalHeader); got != "30" {
		t.Fatalf("expected poll interval 30, got %q", got)
	}
	var resp struct {
		Items []Alert `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Kind != KindReadyToSchedule {
		t.Fatalf("expected only the dispatch alert, got %+v", resp.Items)
	}

	w = httptest.NewRecorder()
	since := resp.Items[0].CreatedAt.Format(time.RFC3339Nano)
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts?since="+since, nil))
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 0 {
		t.Fatalf("expected nothing new since the last poll, got %d", len(resp.Items))
	}

	alertID := store.alerts[0].ID
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/alerts/"+alertID.String()+"/read", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if store.alerts[0].ReadAt == nil {
		t.Fatal("expected the alert to be marked read")
	}

	officeAlert := store.alerts[1].ID
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/alerts/"+officeAlert.String()+"/read", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an alert addressed to office, got %d", w.Code)
	}
}

func TestFeedRejectsMalformedLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, []string{"dispatch"})
		c.Next()
	})
	NewHandler(NewService(&memoryStore{}, nil), 30*time.Second).RegisterRoutes(r.Group("/alerts"))

	for _, raw := range []string{"ten", "-1"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/alerts?limit="+raw, nil))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("limit=%s: expected 400, got %d", raw, w.Code)
		}
	}
}
