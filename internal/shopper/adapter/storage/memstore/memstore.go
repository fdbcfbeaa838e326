// Package memstore is a single-node persistence for the Shopper: a set of
// hash maps guarded by a mutex, in the shape of the Merchant's
// memstore.SessionStore and the teacher's in-memory test fakes. The tests
// use it; cmd/shopper wires the Postgres stores.
package memstore

import (
	"context"
	"sync"

	"ucp-ap2-commerce/internal/shopper/domain"
	"ucp-ap2-commerce/internal/shopper/ports"
)

// UserStore is a process-local ports.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*domain.User)}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.users[u.Email] = &cp
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CredentialStore is a process-local ports.CredentialStore. Only the
// most-recently enrolled credential per user is treated as "default",
// matching this demonstrator's one-device-per-user scope.
type CredentialStore struct {
	mu          sync.RWMutex
	byID        map[string]*domain.DeviceCredential
	byUserEmail map[string]string // user email -> credential id
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		byID:        make(map[string]*domain.DeviceCredential),
		byUserEmail: make(map[string]string),
	}
}

func (s *CredentialStore) Create(ctx context.Context, c *domain.DeviceCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.byID[c.ID] = &cp
	s.byUserEmail[c.UserEmail] = c.ID
	return nil
}

func (s *CredentialStore) GetDefaultForUser(ctx context.Context, userEmail string) (*domain.DeviceCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUserEmail[userEmail]
	if !ok {
		return nil, ports.ErrNotFound
	}
	c, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CredentialStore) IncrementCounter(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[id]
	if !ok {
		return 0, ports.ErrNotFound
	}
	c.Counter++
	return c.Counter, nil
}

// InstrumentStore is a process-local ports.InstrumentStore.
type InstrumentStore struct {
	mu            sync.RWMutex
	byID          map[string]*domain.PaymentInstrument
	defaultByUser map[string]string // user email -> instrument id
}

func NewInstrumentStore() *InstrumentStore {
	return &InstrumentStore{
		byID:          make(map[string]*domain.PaymentInstrument),
		defaultByUser: make(map[string]string),
	}
}

func (s *InstrumentStore) Create(ctx context.Context, i *domain.PaymentInstrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *i
	s.byID[i.ID] = &cp
	if i.IsDefault || s.defaultByUser[i.UserEmail] == "" {
		s.defaultByUser[i.UserEmail] = i.ID
	}
	return nil
}

func (s *InstrumentStore) GetByID(ctx context.Context, id string) (*domain.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *InstrumentStore) GetDefaultForUser(ctx context.Context, userEmail string) (*domain.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.defaultByUser[userEmail]
	if !ok {
		return nil, ports.ErrNotFound
	}
	i, ok := s.byID[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (s *InstrumentStore) Update(ctx context.Context, i *domain.PaymentInstrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[i.ID]; !ok {
		return ports.ErrNotFound
	}
	cp := *i
	s.byID[i.ID] = &cp
	return nil
}

// MandateStore is a process-local ports.MandateStore.
type MandateStore struct {
	mu        sync.RWMutex
	bySession map[string]*domain.InFlightMandate
}

func NewMandateStore() *MandateStore {
	return &MandateStore{bySession: make(map[string]*domain.InFlightMandate)}
}

func (s *MandateStore) Create(ctx context.Context, m *domain.InFlightMandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.bySession[m.SessionID] = &cp
	return nil
}

func (s *MandateStore) GetBySessionID(ctx context.Context, sessionID string) (*domain.InFlightMandate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.bySession[sessionID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MandateStore) Update(ctx context.Context, m *domain.InFlightMandate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bySession[m.SessionID]; !ok {
		return ports.ErrNotFound
	}
	cp := *m
	s.bySession[m.SessionID] = &cp
	return nil
}
