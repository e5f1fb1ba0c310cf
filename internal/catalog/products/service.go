package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasirpos/kasirpos/internal/ledger"
)

// LedgerPort is the slice of the inventory ledger the catalog needs:
// recording the opening stock entry after a product is created.
type LedgerPort interface {
	RecordInitialStock(ctx context.Context, productID int64, qty int) (*ledger.Entry, error)
}

// Service handles product business logic.
type Service struct {
	repo   Repository
	ledger LedgerPort
}

// NewService builds Service instance.
func NewService(repo Repository, ledger LedgerPort) *Service {
	return &Service{repo: repo, ledger: ledger}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, errors.New("invalid product ID")
	}
	return s.repo.Get(ctx, id)
}

// Create persists the product and, when it starts with stock, records
// the opening entry so the log replays to the stored quantity.
func (s *Service) Create(ctx context.Context, form ProductForm) (Product, error) {
	unit := form.Unit
	if unit == "" {
		unit = "pcs"
	}
	product := Product{
		Name:          form.Name,
		CategoryID:    form.CategoryID,
		Price:         form.Price,
		StockQuantity: form.StockQuantity,
		Unit:          unit,
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	if _, err := s.ledger.RecordInitialStock(ctx, created.ID, created.StockQuantity); err != nil {
		return Product{}, fmt.Errorf("record initial stock: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, form ProductForm) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	unit := form.Unit
	if unit == "" {
		unit = "pcs"
	}
	return s.repo.Update(ctx, id, Product{
		Name:       form.Name,
		CategoryID: form.CategoryID,
		Price:      form.Price,
		Unit:       unit,
	})
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid product ID")
	}
	return s.repo.Delete(ctx, id)
}
