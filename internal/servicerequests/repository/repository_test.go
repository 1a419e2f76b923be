package repository

import (
	"reflect"
	"strings"
	"testing"

	"fleet_service_backend/internal/servicerequests/domain"

	"github.com/google/uuid"
)

func TestListFilterNarrowsByStatusAndCategory(t *testing.T) {
	category := domain.CategoryActionRequired
	query, args, next := listFilter(domain.Filter{
		Statuses: []domain.Status{domain.StatusScheduled},
		Category: &category,
	})

	want := "FROM service_requests WHERE 1 = 1 AND status = ANY($1) AND status = ANY($2)"
	if query != want {
		t.Fatalf("expected %q, got %q", want, query)
	}
	if next != 3 || len(args) != 2 {
		t.Fatalf("expected two args and next index 3, got %d args, next %d", len(args), next)
	}
	if !reflect.DeepEqual(args[0], []string{string(domain.StatusScheduled)}) {
		t.Fatalf("expected the status list alone in $1, got %v", args[0])
	}
	inCategory, ok := args[1].([]string)
	if !ok || len(inCategory) != len(domain.StatusesIn(category)) {
		t.Fatalf("expected the category statuses in $2, got %v", args[1])
	}
}

func TestListFilterTechnicianReusesPlaceholder(t *testing.T) {
	tech := uuid.New()
	query, args, next := listFilter(domain.Filter{TechnicianID: &tech})

	if !strings.HasSuffix(query, " AND (lead_technician_id = $1 OR buddy_technician_id = $1)") {
		t.Fatalf("unexpected query %q", query)
	}
	if next != 2 || len(args) != 1 || args[0] != tech {
		t.Fatalf("expected one technician arg, got %v (next %d)", args, next)
	}
}
