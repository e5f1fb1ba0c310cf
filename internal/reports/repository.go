package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines the aggregate queries reports are built from.
type RepositoryPort interface {
	SalesBetween(ctx context.Context, from, to time.Time) (float64, int, error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
	LowStock(ctx context.Context, threshold int) ([]LowStockProduct, error)
}

// Repository runs report aggregations against PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesBetween sums transactions in the half-open interval [from, to).
func (r *Repository) SalesBetween(ctx context.Context, from, to time.Time) (float64, int, error) {
	var total float64
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(total_amount), 0), COUNT(*)
FROM transactions WHERE created_at >= $1 AND created_at < $2`, from, to).Scan(&total, &count)
	return total, count, err
}

// TopProducts ranks products by total quantity sold.
func (r *Repository) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.name, SUM(d.quantity) AS sold
FROM transaction_details d
JOIN products p ON p.id = d.product_id
GROUP BY p.id, p.name
ORDER BY sold DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TopProduct{}
	for rows.Next() {
		var tp TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.ProductName, &tp.QuantitySold); err != nil {
			return nil, err
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

// LowStock lists products whose cached stock fell under the threshold.
func (r *Repository) LowStock(ctx context.Context, threshold int) ([]LowStockProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, stock_quantity, unit
FROM products WHERE stock_quantity < $1 ORDER BY stock_quantity ASC, name ASC`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LowStockProduct{}
	for rows.Next() {
		var p LowStockProduct
		if err := rows.Scan(&p.ProductID, &p.ProductName, &p.StockQuantity, &p.Unit); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
