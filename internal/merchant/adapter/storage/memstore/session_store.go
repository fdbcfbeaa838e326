// Package memstore is a single-node SessionStore: a hash map guarded by a
// mutex, in the shape of the teacher's tests/integration/inmemory_repos.go
// fakes. The tests use it; cmd/merchant wires the Postgres SessionStore.
package memstore

import (
	"context"
	"sync"
	"time"

	"ucp-ap2-commerce/internal/merchant/domain"
	"ucp-ap2-commerce/internal/merchant/ports"
)

// SessionStore is a process-local SessionStore; a single store-wide
// RWMutex guards every session.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CheckoutSession
	byMandate map[string]string // mandate id -> session id
}

// New creates an empty SessionStore.
func New() *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]*domain.CheckoutSession),
		byMandate: make(map[string]string),
	}
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// CompareAndSwap persists sess only if the currently stored version equals
// expectedVersion, then bumps the stored version. This is the optimistic
// concurrency control named in §5: exactly one of two racing Completes
// wins.
func (s *SessionStore) CompareAndSwap(ctx context.Context, sess *domain.CheckoutSession, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[sess.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if current.Version != expectedVersion {
		return ports.ErrVersionConflict
	}

	cp := *sess
	cp.Version = expectedVersion + 1
	s.sessions[sess.ID] = &cp
	if cp.Mandate != nil {
		s.byMandate[cp.Mandate.PaymentMandateContents.PaymentMandateID] = cp.ID
	}
	return nil
}

func (s *SessionStore) ListExpired(ctx context.Context, olderThan time.Time) ([]*domain.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.CheckoutSession
	for _, sess := range s.sessions {
		if sess.Status.IsTerminal() {
			continue
		}
		if sess.Status == domain.StatusReadyForComplete || sess.Status == domain.StatusRequiresEscalation {
			if sess.UpdatedAt.Before(olderThan) {
				cp := *sess
				out = append(out, &cp)
			}
		}
	}
	return out, nil
}

func (s *SessionStore) FindByMandateID(ctx context.Context, mandateID string) (*domain.CheckoutSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessID, ok := s.byMandate[mandateID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	sess, ok := s.sessions[sessID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}
