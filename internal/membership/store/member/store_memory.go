package member

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ccak/internal/membership/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
)

// InMemory keeps members in a mutex-guarded map for unit tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	nextID  domain.MemberID
	byID    map[domain.MemberID]*models.Member
	byEmail map[string]domain.MemberID
}

// NewInMemory creates an empty in-memory member store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[domain.MemberID]*models.Member),
		byEmail: make(map[string]domain.MemberID),
	}
}

// Create assigns an ID and stores the member. Emails are unique,
// case-insensitively.
func (s *InMemory) Create(ctx context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(m.Email)
	if _, exists := s.byEmail[key]; exists {
		return sentinel.ErrConflict
	}

	s.nextID++
	m.ID = s.nextID
	s.byID[m.ID] = cloneMember(m)
	s.byEmail[key] = m.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.MemberID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneMember(m), nil
}

func (s *InMemory) FindByEmail(ctx context.Context, email string) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneMember(s.byID[id]), nil
}

func (s *InMemory) Update(ctx context.Context, m *models.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[m.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !strings.EqualFold(current.Email, m.Email) {
		delete(s.byEmail, strings.ToLower(current.Email))
		s.byEmail[strings.ToLower(m.Email)] = m.ID
	}
	s.byID[m.ID] = cloneMember(m)
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id domain.MemberID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byEmail, strings.ToLower(m.Email))
	delete(s.byID, id)
	return nil
}

// List returns all members, newest first.
func (s *InMemory) List(ctx context.Context) ([]*models.Member, error) {
	return s.Search(ctx, models.MemberQuery{})
}

// Search filters members by keyword and statuses, newest first, paginated.
func (s *InMemory) Search(ctx context.Context, q models.MemberQuery) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Member, 0)
	for _, m := range s.byID {
		if q.SubscriptionStatus != "" && m.SubscriptionStatus != q.SubscriptionStatus {
			continue
		}
		if q.RegistrationStatus != "" && m.RegistrationStatus != q.RegistrationStatus {
			continue
		}
		if q.Keyword != "" && !matchesKeyword(m, q.Keyword) {
			continue
		}
		matches = append(matches, cloneMember(m))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	if q.Limit > 0 {
		page := q.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * q.Limit
		if start >= len(matches) {
			return []*models.Member{}, nil
		}
		end := start + q.Limit
		if end > len(matches) {
			end = len(matches)
		}
		matches = matches[start:end]
	}
	return matches, nil
}

// CountBy tallies members per subscription and registration status for the
// dashboard.
func (s *InMemory) CountBy(ctx context.Context, sub models.SubscriptionStatus, reg models.RegistrationStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.byID {
		if sub != "" && m.SubscriptionStatus != sub {
			continue
		}
		if reg != "" && m.RegistrationStatus != reg {
			continue
		}
		count++
	}
	return count, nil
}

func matchesKeyword(m *models.Member, keyword string) bool {
	for _, word := range strings.Fields(strings.ToLower(keyword)) {
		if strings.Contains(strings.ToLower(m.FirstName), word) ||
			strings.Contains(strings.ToLower(m.LastName), word) ||
			strings.Contains(strings.ToLower(m.Email), word) ||
			strings.Contains(strings.ToLower(m.Company), word) ||
			strings.Contains(strings.ToLower(m.PhoneNumber), word) {
			return true
		}
	}
	return false
}

func cloneMember(m *models.Member) *models.Member {
	cp := *m
	return &cp
}
