package reports

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultLowStockThreshold flags products needing a restock.
const DefaultLowStockThreshold = 5

// SalesSummary is a sales total over one period.
type SalesSummary struct {
	Date         string  `json:"date,omitempty"`
	Month        int     `json:"month,omitempty"`
	Year         int     `json:"year,omitempty"`
	TotalSales   float64 `json:"total_sales"`
	Formatted    string  `json:"total_sales_formatted"`
	Transactions int     `json:"transactions"`
}

// TopProduct is one row of the best-sellers ranking.
type TopProduct struct {
	ProductID    int64  `json:"product_id"`
	ProductName  string `json:"product_name"`
	QuantitySold int    `json:"quantity_sold"`
}

// LowStockProduct is a product under the restock threshold.
type LowStockProduct struct {
	ProductID     int64  `json:"product_id"`
	ProductName   string `json:"product_name"`
	StockQuantity int    `json:"stock_quantity"`
	Unit          string `json:"unit"`
}

// Service aggregates sales and stock figures, caching results in Redis.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	printer *message.Printer
	now     func() time.Time
}

// NewService builds Service. cache may be nil, in which case every call
// hits the database.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		printer: message.NewPrinter(language.Indonesian),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Daily reports today's sales total and transaction count.
func (s *Service) Daily(ctx context.Context) (SalesSummary, error) {
	today := s.now().Truncate(24 * time.Hour)
	loader := func(ctx context.Context) (interface{}, error) {
		total, count, err := s.repo.SalesBetween(ctx, today, today.Add(24*time.Hour))
		if err != nil {
			return nil, err
		}
		return SalesSummary{
			Date:         today.Format("2006-01-02"),
			TotalSales:   total,
			Formatted:    s.formatAmount(total),
			Transactions: count,
		}, nil
	}

	var summary SalesSummary
	key, err := s.cacheKey(ctx, "reports", "daily", today.Format("2006-01-02"))
	if err != nil {
		return SalesSummary{}, err
	}
	if err := s.fetch(ctx, key, &summary, loader); err != nil {
		return SalesSummary{}, err
	}
	return summary, nil
}

// Monthly reports the current month's sales total and transaction count.
func (s *Service) Monthly(ctx context.Context) (SalesSummary, error) {
	now := s.now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	loader := func(ctx context.Context) (interface{}, error) {
		total, count, err := s.repo.SalesBetween(ctx, start, end)
		if err != nil {
			return nil, err
		}
		return SalesSummary{
			Month:        int(now.Month()),
			Year:         now.Year(),
			TotalSales:   total,
			Formatted:    s.formatAmount(total),
			Transactions: count,
		}, nil
	}

	var summary SalesSummary
	key, err := s.cacheKey(ctx, "reports", "monthly", start.Format("2006-01"))
	if err != nil {
		return SalesSummary{}, err
	}
	if err := s.fetch(ctx, key, &summary, loader); err != nil {
		return SalesSummary{}, err
	}
	return summary, nil
}

// TopProducts ranks the best-selling products by quantity.
func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.TopProducts(ctx, limit)
	}
	var out []TopProduct
	key, err := s.cacheKey(ctx, "reports", "top", strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	if err := s.fetch(ctx, key, &out, loader); err != nil {
		return nil, err
	}
	return out, nil
}

// LowStock lists products under the threshold. Not cached: restock
// decisions need the live figure.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]LowStockProduct, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.repo.LowStock(ctx, threshold)
}

// Invalidate expires all cached report figures.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) formatAmount(v float64) string {
	return s.printer.Sprintf("Rp%.2f", v)
}

func (s *Service) cacheKey(ctx context.Context, parts ...string) (string, error) {
	return s.cache.BuildKey(ctx, parts...)
}

func (s *Service) fetch(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	return s.cache.FetchJSON(ctx, key, dest, loader)
}
