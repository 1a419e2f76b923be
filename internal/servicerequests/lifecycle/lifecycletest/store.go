// Package lifecycletest provides an in-memory lifecycle store for tests.
package lifecycletest

import (
	"context"
	"sort"
	"sync"

	"fleet_service_backend/internal/servicerequests/domain"
	"fleet_service_backend/platform/apperr"

	"github.com/google/uuid"
)

// Store keeps requests in memory and honours the version check.
type Store struct {
	mu       sync.Mutex
	requests map[uuid.UUID]*domain.ServiceRequest
	failures map[uuid.UUID]error
	saves    int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		requests: make(map[uuid.UUID]*domain.ServiceRequest),
		failures: make(map[uuid.UUID]error),
	}
}

// Put seeds a request. A zero version becomes 1.
func (s *Store) Put(req *domain.ServiceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := req.Clone()
	if c.Version == 0 {
		c.Version = 1
	}
	s.requests[c.ID] = c
}

// FailSaves makes every Save for id return err, simulating a backend failure.
func (s *Store) FailSaves(id uuid.UUID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = err
}

// Snapshot returns a copy of the stored request, or nil.
func (s *Store) Snapshot(id uuid.UUID) *domain.ServiceRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id].Clone()
}

// Saves counts successful writes.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (*domain.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("service request not found")
	}
	return req.Clone(), nil
}

func (s *Store) Create(_ context.Context, req *domain.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *Store) Save(_ context.Context, m domain.Mutation, expectedVersion int) (*domain.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := m.Request.ID
	if err, ok := s.failures[id]; ok {
		return nil, err
	}
	current, ok := s.requests[id]
	if !ok {
		return nil, apperr.NotFound("service request not found")
	}
	if current.Version != expectedVersion {
		return nil, domain.VersionConflict(expectedVersion)
	}

	next := m.Request.Clone()
	next.Version = expectedVersion + 1
	s.requests[id] = next
	s.saves++
	return next.Clone(), nil
}

func (s *Store) List(_ context.Context, f domain.Filter) ([]*domain.ServiceRequest, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ServiceRequest
	for _, req := range s.requests {
		if matches(f, req) {
			out = append(out, req.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := len(out)
	if f.PageSize > 0 {
		start := (f.Page - 1) * f.PageSize
		if start < 0 {
			start = 0
		}
		if start > total {
			start = total
		}
		end := start + f.PageSize
		if end > total {
			end = total
		}
		out = out[start:end]
	}
	return out, total, nil
}

func matches(f domain.Filter, req *domain.ServiceRequest) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if st == req.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Category != nil && req.Status.Category() != *f.Category {
		return false
	}
	if f.CustomerID != nil && *f.CustomerID != req.CustomerID {
		return false
	}
	if f.TechnicianID != nil && !req.IsAssigned(*f.TechnicianID) {
		return false
	}
	return true
}
