package auth

import (
	"context"
	"sync"
)

// MemoryConsoleTokenStore is a map-backed ConsoleTokenStore for tests and
// single-process deployments.
type MemoryConsoleTokenStore struct {
	mu      sync.RWMutex
	byValue map[string]ConsoleToken
}

var _ ConsoleTokenStore = (*MemoryConsoleTokenStore)(nil)

func NewMemoryConsoleTokenStore() *MemoryConsoleTokenStore {
	return &MemoryConsoleTokenStore{byValue: make(map[string]ConsoleToken)}
}

// Put inserts or replaces a token keyed by its value.
func (s *MemoryConsoleTokenStore) Put(tok ConsoleToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byValue[tok.Value] = tok
}

func (s *MemoryConsoleTokenStore) FindByValue(ctx context.Context, value string) (*ConsoleToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.byValue[value]
	if !ok {
		return nil, ErrNotFound
	}
	copy := tok
	return &copy, nil
}

// MemorySessionStore is a map-backed SessionStore.
type MemorySessionStore struct {
	mu   sync.RWMutex
	byID map[string]Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{byID: make(map[string]Session)}
}

func (s *MemorySessionStore) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.ID] = sess
}

func (s *MemorySessionStore) Find(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := sess
	return &copy, nil
}

// MemoryRoleStore is a map-backed RoleStore. SetUnavailable simulates a
// role-storage outage for degraded-mode coverage.
type MemoryRoleStore struct {
	mu          sync.RWMutex
	byUser      map[string][]string
	unavailable error
}

var _ RoleStore = (*MemoryRoleStore)(nil)

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{byUser: make(map[string][]string)}
}

func (s *MemoryRoleStore) SetRoles(userID string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[userID] = append([]string(nil), roles...)
}

func (s *MemoryRoleStore) SetUnavailable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = err
}

func (s *MemoryRoleStore) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unavailable != nil {
		return nil, s.unavailable
	}
	return append([]string(nil), s.byUser[userID]...), nil
}
