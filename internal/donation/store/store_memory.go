package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ccak/internal/donation/models"
	"ccak/pkg/domain"
	"ccak/pkg/platform/sentinel"
)

// InMemory keeps donations in a mutex-guarded map.
type InMemory struct {
	mu     sync.RWMutex
	nextID domain.DonationID
	byID   map[domain.DonationID]*models.Donation
}

// NewInMemory creates an empty in-memory donation store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[domain.DonationID]*models.Donation)}
}

func (s *InMemory) Create(ctx context.Context, d *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	d.ID = s.nextID
	s.byID[d.ID] = cloneDonation(d)
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.DonationID) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDonation(d), nil
}

// FindByInvoiceNumber returns the donation linked to the given invoice, if any.
func (s *InMemory) FindByInvoiceNumber(ctx context.Context, number string) (*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.byID {
		if d.InvoiceNumber == number {
			return cloneDonation(d), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(ctx context.Context, d *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[d.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[d.ID] = cloneDonation(d)
	return nil
}

func (s *InMemory) Delete(ctx context.Context, id domain.DonationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

// Search returns donations matching the query, newest first, paginated.
func (s *InMemory) Search(ctx context.Context, q models.DonationQuery) ([]*models.Donation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Donation
	for _, d := range s.byID {
		if q.Status != "" && d.Status != q.Status {
			continue
		}
		if q.Keyword != "" && !donationMatches(d, q.Keyword) {
			continue
		}
		matched = append(matched, cloneDonation(d))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, q.Page, q.Limit), nil
}

// TotalAmount sums amounts of donations in the given status; empty status sums all.
func (s *InMemory) TotalAmount(ctx context.Context, status models.DonationStatus) (models.DonationTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total models.DonationTotals
	for _, d := range s.byID {
		if status != "" && d.Status != status {
			continue
		}
		total.Amount = total.Amount.Add(d.Amount)
		total.Count++
	}
	return total, nil
}

func donationMatches(d *models.Donation, keyword string) bool {
	for _, word := range strings.Fields(strings.ToLower(keyword)) {
		if strings.Contains(strings.ToLower(d.FirstName), word) ||
			strings.Contains(strings.ToLower(d.LastName), word) ||
			strings.Contains(strings.ToLower(d.PhoneNumber), word) ||
			strings.Contains(strings.ToLower(d.Company), word) ||
			strings.Contains(strings.ToLower(d.InvoiceNumber), word) {
			return true
		}
	}
	return false
}

func paginate(donations []*models.Donation, page, limit int) []*models.Donation {
	if limit <= 0 {
		return donations
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(donations) {
		return nil
	}
	end := start + limit
	if end > len(donations) {
		end = len(donations)
	}
	return donations[start:end]
}

func cloneDonation(d *models.Donation) *models.Donation {
	cp := *d
	return &cp
}
