package payment

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ccak/internal/billing/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
)

// InMemory keeps payments in a mutex-guarded map for unit tests and dev mode.
type InMemory struct {
	mu     sync.RWMutex
	nextID domain.PaymentID
	byID   map[domain.PaymentID]*models.Payment
}

// NewInMemory creates an empty in-memory payment store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.PaymentID]*models.Payment)}
}

// Create assigns an ID and stores the payment. Duplicate transaction ids are
// accepted here; de-duplication happens at aggregation time so a webhook retry
// arriving through a second instance is still recorded for audit.
func (s *InMemory) Create(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	p.ID = s.nextID
	s.byID[p.ID] = clonePayment(p)
	return nil
}

// FindByID returns the payment or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, id domain.PaymentID) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clonePayment(p), nil
}

// Update replaces a stored payment.
func (s *InMemory) Update(ctx context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[p.ID] = clonePayment(p)
	return nil
}

// Delete removes a payment by ID.
func (s *InMemory) Delete(ctx context.Context, id domain.PaymentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// ListByInvoiceNumber returns all payments whose invoice number exactly equals
// the given key, oldest first. Zero matches yields an empty slice, not an error.
func (s *InMemory) ListByInvoiceNumber(ctx context.Context, number string) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Payment, 0)
	for _, p := range s.byID {
		if p.InvoiceNumber == number {
			matches = append(matches, clonePayment(p))
		}
	}
	sortOldestFirst(matches)
	return matches, nil
}

// ListByTransactionID returns all payments recorded under a transaction id,
// oldest first. Used by mobile-money activation to patch invoice linkage.
func (s *InMemory) ListByTransactionID(ctx context.Context, transactionID string) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Payment, 0)
	for _, p := range s.byID {
		if p.TransactionID == transactionID {
			matches = append(matches, clonePayment(p))
		}
	}
	sortOldestFirst(matches)
	return matches, nil
}

// Search filters payments by method and keyword, newest first, paginated.
func (s *InMemory) Search(ctx context.Context, q models.PaymentQuery) ([]*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Payment, 0)
	for _, p := range s.byID {
		if q.Method != "" && p.Method != q.Method {
			continue
		}
		if q.Keyword != "" && !matchesKeyword(p, q.Keyword) {
			continue
		}
		matches = append(matches, clonePayment(p))
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
			return []*models.Payment{}, nil
		}
		end := start + q.Limit
		if end > len(matches) {
			end = len(matches)
		}
		matches = matches[start:end]
	}
	return matches, nil
}

// matchesKeyword splits the keyword into words; any word matching any of the
// searchable fields qualifies the payment.
func matchesKeyword(p *models.Payment, keyword string) bool {
	for _, word := range strings.Fields(strings.ToLower(keyword)) {
		if strings.Contains(strings.ToLower(p.InvoiceNumber), word) ||
			strings.Contains(strings.ToLower(p.TransactionID), word) ||
			strings.Contains(strings.ToLower(p.PaidBy.Name), word) ||
			strings.Contains(strings.ToLower(p.PaidBy.PhoneNumber), word) {
			return true
		}
	}
	return false
}

func sortOldestFirst(payments []*models.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		if payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
}

func clonePayment(p *models.Payment) *models.Payment {
	cp := *p
	return &cp
}
