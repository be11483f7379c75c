package invoice

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ccak/internal/billing/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
)

// InMemory keeps invoices in a mutex-guarded map. Used by unit tests and dev
// mode; production uses the Postgres store.
type InMemory struct {
	mu       sync.RWMutex
	nextID   domain.InvoiceID
	byID     map[domain.InvoiceID]*models.Invoice
	byNumber map[string]domain.InvoiceID
}

// NewInMemory creates an empty in-memory invoice store.
func NewInMemory() *InMemory {
	return &InMemory{
		byID:     make(map[domain.InvoiceID]*models.Invoice),
		byNumber: make(map[string]domain.InvoiceID),
	}
}

// Create assigns an ID and stores the invoice. Returns sentinel.ErrConflict
// when the invoice number is already taken.
func (s *InMemory) Create(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byNumber[inv.Number]; exists {
		return sentinel.ErrConflict
	}

	s.nextID++
	inv.ID = s.nextID
	s.byID[inv.ID] = cloneInvoice(inv)
	s.byNumber[inv.Number] = inv.ID
	return nil
}

// FindByID returns the invoice or sentinel.ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, id domain.InvoiceID) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

// FindByNumber returns the invoice with the exact number or sentinel.ErrNotFound.
// The lookup is an exact string match; invoice numbers are case- and
// format-sensitive keys.
func (s *InMemory) FindByNumber(ctx context.Context, number string) (*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneInvoice(s.byID[id]), nil
}

// Update replaces a stored invoice. The invoice number cannot change.
func (s *InMemory) Update(ctx context.Context, inv *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[inv.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Number != inv.Number {
		return sentinel.ErrInvalidState
	}
	s.byID[inv.ID] = cloneInvoice(inv)
	return nil
}

// Delete removes an invoice by ID.
func (s *InMemory) Delete(ctx context.Context, id domain.InvoiceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.byID[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byNumber, inv.Number)
	delete(s.byID, id)
	return nil
}

// Execute atomically loads the invoice by number, validates, mutates, and
// persists it while holding the store lock. Concurrent Execute calls on one
// invoice serialize here; this is what makes the paid transition fire its
// completion exactly once.
func (s *InMemory) Execute(
	ctx context.Context,
	number string,
	validate func(*models.Invoice) error,
	mutate func(*models.Invoice),
) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	inv := cloneInvoice(s.byID[id])
	if err := validate(inv); err != nil {
		return nil, err
	}
	mutate(inv)
	s.byID[id] = cloneInvoice(inv)
	return inv, nil
}

// CountCreatedOn counts invoices created on the given calendar day (UTC).
// Feeds the daily invoice-number sequence.
func (s *InMemory) CountCreatedOn(ctx context.Context, day time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := day.UTC().Date()
	count := 0
	for _, inv := range s.byID {
		iy, im, id := inv.CreatedAt.UTC().Date()
		if iy == y && im == m && id == d {
			count++
		}
	}
	return count, nil
}

// Search filters invoices and returns the requested page, newest first.
func (s *InMemory) Search(ctx context.Context, q models.InvoiceQuery) ([]*models.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]*models.Invoice, 0)
	for _, inv := range s.byID {
		if q.NumberContains != "" && !strings.Contains(inv.Number, q.NumberContains) {
			continue
		}
		if q.Type != "" && inv.Type != q.Type {
			continue
		}
		if q.Status != "" && inv.Status != q.Status {
			continue
		}
		matches = append(matches, cloneInvoice(inv))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})

	return paginate(matches, q.Page, q.Limit), nil
}

func paginate(invoices []*models.Invoice, page, limit int) []*models.Invoice {
	if limit <= 0 {
		return invoices
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(invoices) {
		return []*models.Invoice{}
	}
	end := start + limit
	if end > len(invoices) {
		end = len(invoices)
	}
	return invoices[start:end]
}

func cloneInvoice(inv *models.Invoice) *models.Invoice {
	cp := *inv
	cp.Items = make([]models.LineItem, len(inv.Items))
	copy(cp.Items, inv.Items)
	if inv.CompletedAt != nil {
		t := *inv.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
