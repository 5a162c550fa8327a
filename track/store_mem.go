package track

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used by tests and by local runs without
// Postgres. Not crash-durable.
type MemoryStore struct {
	mu      sync.Mutex
	watches map[string]StreamWatch // key: tenant + "\x00" + entityID
	tenants map[string]TenantConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		watches: make(map[string]StreamWatch),
		tenants: make(map[string]TenantConfig),
	}
}

func memKey(tenant, entityID string) string { return tenant + "\x00" + entityID }

func (s *MemoryStore) Get(_ context.Context, tenant, entityID string) (*StreamWatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watches[memKey(tenant, entityID)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := w
	return &cp, nil
}

func (s *MemoryStore) GetByLogin(_ context.Context, tenant, login string) (*StreamWatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watches {
		if w.Tenant == tenant && strings.EqualFold(w.Login, login) {
			cp := w
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Put(_ context.Context, w *StreamWatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	if cp.Notification != nil {
		ref := *cp.Notification
		cp.Notification = &ref
	}
	s.watches[memKey(w.Tenant, w.EntityID)] = cp
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, tenant, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(tenant, entityID)
	if _, ok := s.watches[key]; !ok {
		return ErrNotFound
	}
	delete(s.watches, key)
	return nil
}

func (s *MemoryStore) SetAnnounceText(_ context.Context, tenant, entityID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memKey(tenant, entityID)
	w, ok := s.watches[key]
	if !ok {
		return ErrNotFound
	}
	w.AnnounceText = text
	s.watches[key] = w
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context, tenant string) ([]StreamWatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []StreamWatch
	for _, w := range s.watches {
		if w.Tenant == tenant {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out, nil
}

func (s *MemoryStore) Tenants(_ context.Context) ([]TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []TenantConfig
	for _, tc := range s.tenants {
		out = append(out, tc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tenant < out[j].Tenant })
	return out, nil
}

func (s *MemoryStore) GetTenant(_ context.Context, tenant string) (*TenantConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.tenants[tenant]
	if !ok {
		return nil, ErrNotFound
	}
	cp := tc
	return &cp, nil
}

func (s *MemoryStore) PutTenant(_ context.Context, tc *TenantConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[tc.Tenant] = *tc
	return nil
}
