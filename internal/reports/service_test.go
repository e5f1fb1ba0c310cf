package reports

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	total       float64
	count       int
	salesCalls  int
	topProducts []TopProduct
	lowStock    []LowStockProduct
	threshold   int
}

func (s *stubRepo) SalesBetween(_ context.Context, from, to time.Time) (float64, int, error) {
	s.salesCalls++
	return s.total, s.count, nil
}

func (s *stubRepo) TopProducts(_ context.Context, limit int) ([]TopProduct, error) {
	if limit < len(s.topProducts) {
		return s.topProducts[:limit], nil
	}
	return s.topProducts, nil
}

func (s *stubRepo) LowStock(_ context.Context, threshold int) ([]LowStockProduct, error) {
	s.threshold = threshold
	return s.lowStock, nil
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCache(client, time.Minute)
}

func TestDailySummary(t *testing.T) {
	repo := &stubRepo{total: 125000, count: 4}
	svc := NewService(repo, nil)

	summary, err := svc.Daily(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(125000), summary.TotalSales)
	require.Equal(t, 4, summary.Transactions)
	require.NotEmpty(t, summary.Date)
	require.Contains(t, summary.Formatted, "Rp")
}

func TestMonthlySummary(t *testing.T) {
	repo := &stubRepo{total: 3400000, count: 88}
	svc := NewService(repo, nil)

	summary, err := svc.Monthly(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(3400000), summary.TotalSales)
	require.Equal(t, 88, summary.Transactions)
	require.NotZero(t, summary.Month)
	require.NotZero(t, summary.Year)
}

func TestDailyUsesCache(t *testing.T) {
	repo := &stubRepo{total: 50000, count: 2}
	svc := NewService(repo, newTestCache(t))

	_, err := svc.Daily(context.Background())
	require.NoError(t, err)
	_, err = svc.Daily(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.salesCalls)
}

func TestInvalidateExpiresCache(t *testing.T) {
	repo := &stubRepo{total: 50000, count: 2}
	svc := NewService(repo, newTestCache(t))

	_, err := svc.Daily(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(context.Background()))
	_, err = svc.Daily(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.salesCalls)
}

func TestTopProductsDefaultsLimit(t *testing.T) {
	repo := &stubRepo{topProducts: []TopProduct{
		{ProductID: 1, ProductName: "Kopi", QuantitySold: 40},
		{ProductID: 2, ProductName: "Roti", QuantitySold: 12},
	}}
	svc := NewService(repo, nil)

	out, err := svc.TopProducts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "Kopi", out[0].ProductName)
}

func TestLowStockDefaultsThreshold(t *testing.T) {
	repo := &stubRepo{lowStock: []LowStockProduct{{ProductID: 3, ProductName: "Gula", StockQuantity: 1, Unit: "kg"}}}
	svc := NewService(repo, nil)

	out, err := svc.LowStock(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, DefaultLowStockThreshold, repo.threshold)
}
