package sales

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kasirpos/kasirpos/internal/ledger"
	"github.com/kasirpos/kasirpos/internal/platform/db"
	"github.com/kasirpos/kasirpos/internal/shared"
)

// TxRepository exposes the writes a checkout performs inside one
// database transaction. Ledger returns a ledger repository bound to
// the same transaction, so stock deductions commit or roll back with
// the header, details and payment.
type TxRepository interface {
	InsertTransaction(ctx context.Context, t Transaction) (int64, error)
	InsertDetail(ctx context.Context, d TransactionDetail) (int64, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	Ledger() ledger.TxRepository
}

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
	Get(ctx context.Context, id int64) (Transaction, error)
}

// Repository persists transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx     pgx.Tx
	ledger ledger.TxRepository
}

// WithTx executes the callback inside a repeatable-read transaction,
// matching the isolation the ledger runs its own mutations under.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx, ledger: ledger.NewTxRepository(tx)})
	})
}

// List returns transactions with their detail lines, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, user_id, payment_method, total_amount, created_at
FROM transactions
WHERE ($1::bigint = 0 OR user_id = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2`, filter.UserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := []Transaction{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.PaymentMethod, &t.TotalAmount, &t.DateTime); err != nil {
			return nil, err
		}
		t.Details = []TransactionDetail{}
		index[t.ID] = len(transactions)
		ids = append(ids, t.ID)
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return transactions, nil
	}

	detailRows, err := r.pool.Query(ctx, `SELECT id, transaction_id, product_id, quantity, price, subtotal
FROM transaction_details WHERE transaction_id = ANY($1) ORDER BY id ASC`, ids)
	if err != nil {
		return nil, err
	}
	defer detailRows.Close()
	for detailRows.Next() {
		var d TransactionDetail
		if err := detailRows.Scan(&d.ID, &d.TransactionID, &d.ProductID, &d.Quantity, &d.Price, &d.Subtotal); err != nil {
			return nil, err
		}
		if i, ok := index[d.TransactionID]; ok {
			transactions[i].Details = append(transactions[i].Details, d)
		}
	}
	return transactions, detailRows.Err()
}

// Get returns one transaction with its detail lines.
func (r *Repository) Get(ctx context.Context, id int64) (Transaction, error) {
	var t Transaction
	err := r.pool.QueryRow(ctx, `SELECT id, user_id, payment_method, total_amount, created_at FROM transactions WHERE id=$1`, id).
		Scan(&t.ID, &t.UserID, &t.PaymentMethod, &t.TotalAmount, &t.DateTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, shared.ErrNotFound
		}
		return Transaction{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, transaction_id, product_id, quantity, price, subtotal
FROM transaction_details WHERE transaction_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Transaction{}, err
	}
	defer rows.Close()
	t.Details = []TransactionDetail{}
	for rows.Next() {
		var d TransactionDetail
		if err := rows.Scan(&d.ID, &d.TransactionID, &d.ProductID, &d.Quantity, &d.Price, &d.Subtotal); err != nil {
			return Transaction{}, err
		}
		t.Details = append(t.Details, d)
	}
	return t, rows.Err()
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	createdAt := t.DateTime
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transactions (user_id, payment_method, total_amount, created_at)
VALUES ($1,$2,$3,$4) RETURNING id`, t.UserID, t.PaymentMethod, t.TotalAmount, createdAt).Scan(&id)
	return id, err
}

func (r *txRepository) InsertDetail(ctx context.Context, d TransactionDetail) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transaction_details (transaction_id, product_id, quantity, price, subtotal)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, d.TransactionID, d.ProductID, d.Quantity, d.Price, d.Subtotal).Scan(&id)
	return id, err
}

func (r *txRepository) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (transaction_id, method, amount)
VALUES ($1,$2,$3) RETURNING id`, p.TransactionID, p.Method, p.Amount).Scan(&id)
	return id, err
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return r.ledger
}
