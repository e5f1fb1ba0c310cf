package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirpos/kasirpos/internal/platform/db"
)

// Repository persists ledger data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations the service runs
// under a single database transaction. GetProductForUpdate takes a row
// lock, so concurrent mutations of the same product serialise.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, productID int64) (Product, error)
	UpdateProductStock(ctx context.Context, productID int64, stock int) error
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	GetEntry(ctx context.Context, entryID int64) (Entry, error)
	UpdateEntry(ctx context.Context, entry Entry) error
	DeleteEntry(ctx context.Context, entryID int64) error
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListEntries(ctx context.Context, filter ListFilter) ([]EntryWithProduct, error)
	SumEntries(ctx context.Context, productID int64) (int, error)
	GetProduct(ctx context.Context, productID int64) (Product, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an existing pgx transaction so other modules can
// run ledger mutations inside their own transaction boundary.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("ledger repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// ListEntries returns entries ascending by id, joined with the product
// name at read time.
func (r *Repository) ListEntries(ctx context.Context, filter ListFilter) ([]EntryWithProduct, error) {
	if r == nil {
		return nil, errors.New("ledger repository not initialised")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT l.id, l.product_id, l.change_type, l.quantity_change, l.remarks, l.created_at, l.current_stock, COALESCE(p.name, '')
FROM inventory_logs l
LEFT JOIN products p ON p.id = l.product_id
WHERE ($1::bigint = 0 OR l.product_id = $1)
ORDER BY l.created_at ASC, l.id ASC
LIMIT $2`, filter.ProductID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := []EntryWithProduct{}
	for rows.Next() {
		var e EntryWithProduct
		if err := rows.Scan(&e.ID, &e.ProductID, &e.ChangeType, &e.QuantityChange, &e.Remarks, &e.CreatedAt, &e.CurrentStock, &e.ProductName); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// SumEntries replays all deltas for a product.
func (r *Repository) SumEntries(ctx context.Context, productID int64) (int, error) {
	var sum int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity_change), 0) FROM inventory_logs WHERE product_id=$1`, productID).Scan(&sum)
	return sum, err
}

// GetProduct reads the product without locking it.
func (r *Repository) GetProduct(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT id, name, stock_quantity FROM products WHERE id=$1`, productID).Scan(&p.ID, &p.Name, &p.StockQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	var p Product
	err := r.tx.QueryRow(ctx, `SELECT id, name, stock_quantity FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&p.ID, &p.Name, &p.StockQuantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *txRepository) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE products SET stock_quantity=$1 WHERE id=$2`, stock, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *txRepository) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_logs (product_id, change_type, quantity_change, remarks, created_at, current_stock)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, entry.ProductID, string(entry.ChangeType), entry.QuantityChange, entry.Remarks, createdAt, entry.CurrentStock).Scan(&id)
	return id, err
}

func (r *txRepository) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	var e Entry
	err := r.tx.QueryRow(ctx, `SELECT id, product_id, change_type, quantity_change, remarks, created_at, current_stock FROM inventory_logs WHERE id=$1 FOR UPDATE`, entryID).
		Scan(&e.ID, &e.ProductID, &e.ChangeType, &e.QuantityChange, &e.Remarks, &e.CreatedAt, &e.CurrentStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return e, nil
}

func (r *txRepository) UpdateEntry(ctx context.Context, entry Entry) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_logs SET product_id=$1, change_type=$2, quantity_change=$3, remarks=$4, current_stock=$5 WHERE id=$6`,
		entry.ProductID, string(entry.ChangeType), entry.QuantityChange, entry.Remarks, entry.CurrentStock, entry.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM inventory_logs WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}
