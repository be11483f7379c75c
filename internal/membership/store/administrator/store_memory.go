package administrator

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ccak/internal/membership/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
)

// InMemory keeps administrators in a mutex-guarded map.
type InMemory struct {
	mu      sync.RWMutex
	nextID  domain.AdministratorID
	byID    map[domain.AdministratorID]*models.Administrator
	byEmail map[string]domain.AdministratorID
}

// NewInMemory creates an empty in-memory administrator store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[domain.AdministratorID]*models.Administrator),
		byEmail: make(map[string]domain.AdministratorID),
	}
}

func (s *InMemory) Create(ctx context.Context, a *models.Administrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(a.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}

	s.nextID++
	a.ID = s.nextID
	s.byID[a.ID] = cloneAdministrator(a)
	s.byEmail[key] = a.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.AdministratorID) (*models.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAdministrator(a), nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*models.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneAdministrator(s.byID[id]), nil
}

func (s *InMemory) Update(ctx context.Context, a *models.Administrator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[a.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !strings.EqualFold(current.Email, a.Email) {
		delete(s.byEmail, strings.ToLower(current.Email))
		s.byEmail[strings.ToLower(a.Email)] = a.ID
	}
	s.byID[a.ID] = cloneAdministrator(a)
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id domain.AdministratorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, strings.ToLower(a.Email))
	delete(s.byID, id)
	return nil
}

// List returns all administrators, oldest first.
func (s *InMemory) List(ctx context.Context) ([]*models.Administrator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	admins := make([]*models.Administrator, 0, len(s.byID))
	for _, a := range s.byID {
		admins = append(admins, cloneAdministrator(a))
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].ID < admins[j].ID })
	return admins, nil
}

// Count returns the number of administrators.
func (s *InMemory) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

func cloneAdministrator(a *models.Administrator) *models.Administrator {
	cp := *a
	return &cp
}
