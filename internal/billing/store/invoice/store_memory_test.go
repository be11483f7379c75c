package invoice

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"ccak/internal/billing/models"
	"ccak/pkg/platform/sentinel"
)

type InMemoryInvoiceSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryInvoiceSuite(t *testing.T) {
	suite.Run(t, new(InMemoryInvoiceSuite))
}

func (s *InMemoryInvoiceSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryInvoiceSuite) newInvoice(number string) *models.Invoice {
	return &models.Invoice{
		Number:      number,
		Description: "Annual Subscription",
		Type:        models.TypeSubscription,
		Items: []models.LineItem{
			{Name: "Annual Subscription", Quantity: 1, UnitPrice: decimal.NewFromInt(1000)},
		},
		Status:      models.InvoiceUnpaid,
		CreatedAt:   time.Now().UTC(),
		LastUpdated: time.Now().UTC(),
	}
}

func (s *InMemoryInvoiceSuite) TestCreateAndFind() {
	inv := s.newInvoice("INV-20240601-001")
	s.Require().NoError(s.store.Create(s.ctx, inv))
	s.NotZero(inv.ID)

	s.Run("find by id", func() {
		got, err := s.store.FindByID(s.ctx, inv.ID)
		s.Require().NoError(err)
		s.Equal(inv.Number, got.Number)
	})

	s.Run("find by number", func() {
		got, err := s.store.FindByNumber(s.ctx, inv.Number)
		s.Require().NoError(err)
		s.Equal(inv.ID, got.ID)
	})

	s.Run("duplicate number conflicts", func() {
		err := s.store.Create(s.ctx, s.newInvoice("INV-20240601-001"))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing invoice is not found", func() {
		_, err := s.store.FindByNumber(s.ctx, "INV-00000000-999")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryInvoiceSuite) TestUpdateKeepsNumberImmutable() {
	inv := s.newInvoice("INV-20240601-001")
	s.Require().NoError(s.store.Create(s.ctx, inv))

	inv.Number = "INV-20240601-002"
	s.ErrorIs(s.store.Update(s.ctx, inv), sentinel.ErrInvalidState)
}

func (s *InMemoryInvoiceSuite) TestExecuteSerializesTransition() {
	inv := s.newInvoice("INV-20240601-001")
	s.Require().NoError(s.store.Create(s.ctx, inv))

	// Many goroutines race the unpaid->paid transition; the validate step must
	// let exactly one through.
	var transitions int
	var mu sync.Mutex
	var wg sync.WaitGroup
	now := time.Now().UTC()

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(s.ctx, inv.Number,
				func(current *models.Invoice) error {
					if current.IsPaid() {
						return sentinel.ErrInvalidState
					}
					return nil
				},
				func(current *models.Invoice) {
					current.MarkPaid(now)
				},
			)
			if err == nil {
				mu.Lock()
				transitions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, transitions)
	got, err := s.store.FindByNumber(s.ctx, inv.Number)
	s.Require().NoError(err)
	s.True(got.IsPaid())
	s.NotNil(got.CompletedAt)
}

func (s *InMemoryInvoiceSuite) TestCountCreatedOn() {
	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	other := day.AddDate(0, 0, 1)

	first := s.newInvoice("INV-20240601-001")
	first.CreatedAt = day
	second := s.newInvoice("INV-20240601-002")
	second.CreatedAt = day.Add(5 * time.Hour)
	third := s.newInvoice("INV-20240602-001")
	third.CreatedAt = other

	for _, inv := range []*models.Invoice{first, second, third} {
		s.Require().NoError(s.store.Create(s.ctx, inv))
	}

	count, err := s.store.CountCreatedOn(s.ctx, day)
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.CountCreatedOn(s.ctx, other)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *InMemoryInvoiceSuite) TestSearch() {
	a := s.newInvoice("INV-20240601-001")
	b := s.newInvoice("INV-20240601-002")
	b.Description = "Donation"
	b.Type = models.TypeDonation
	c := s.newInvoice("INV-20240602-001")
	c.Status = models.InvoicePaid

	for _, inv := range []*models.Invoice{a, b, c} {
		s.Require().NoError(s.store.Create(s.ctx, inv))
	}

	s.Run("filter by number substring", func() {
		got, err := s.store.Search(s.ctx, models.InvoiceQuery{NumberContains: "20240601", Limit: 10})
		s.Require().NoError(err)
		s.Len(got, 2)
	})

	s.Run("filter by type", func() {
		got, err := s.store.Search(s.ctx, models.InvoiceQuery{Type: models.TypeDonation, Limit: 10})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(b.Number, got[0].Number)
	})

	s.Run("filter by status", func() {
		got, err := s.store.Search(s.ctx, models.InvoiceQuery{Status: models.InvoicePaid, Limit: 10})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(c.Number, got[0].Number)
	})

	s.Run("newest first with pagination", func() {
		page1, err := s.store.Search(s.ctx, models.InvoiceQuery{Page: 1, Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(page1, 2)
		s.Equal(c.Number, page1[0].Number)

		page2, err := s.store.Search(s.ctx, models.InvoiceQuery{Page: 2, Limit: 2})
		s.Require().NoError(err)
		s.Len(page2, 1)
	})
}
