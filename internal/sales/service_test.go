package sales

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kasirpos/kasirpos/internal/ledger"
	"github.com/kasirpos/kasirpos/internal/shared"
)

// memoryStore mimics the PostgreSQL repository: WithTx serialises like
// a row lock and discards all staged writes, sales rows and ledger rows
// alike, when the callback fails.
type memoryStore struct {
	mu           sync.Mutex
	products     map[int64]ledger.Product
	logEntries   []ledger.Entry
	transactions []Transaction
	details      []TransactionDetail
	payments     []Payment
	nextID       int64
}

type memoryTx struct {
	store *memoryStore
	// staged copies; promoted to the store only on commit
	products     map[int64]ledger.Product
	logEntries   []ledger.Entry
	transactions []Transaction
	details      []TransactionDetail
	payments     []Payment
	nextID       int64
}

func newMemoryStore(products ...ledger.Product) *memoryStore {
	store := &memoryStore{products: map[int64]ledger.Product{}}
	for _, p := range products {
		store.products[p.ID] = p
	}
	return store
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{store: s, products: map[int64]ledger.Product{}, nextID: s.nextID}
	for id, p := range s.products {
		tx.products[id] = p
	}
	tx.logEntries = append(tx.logEntries, s.logEntries...)
	tx.transactions = append(tx.transactions, s.transactions...)
	tx.details = append(tx.details, s.details...)
	tx.payments = append(tx.payments, s.payments...)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.products = tx.products
	s.logEntries = tx.logEntries
	s.transactions = tx.transactions
	s.details = tx.details
	s.payments = tx.payments
	s.nextID = tx.nextID
	return nil
}

func (s *memoryStore) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Transaction{}
	for _, t := range s.transactions {
		if filter.UserID != 0 && t.UserID != filter.UserID {
			continue
		}
		t.Details = s.detailsFor(t.ID)
		out = append(out, t)
	}
	return out, nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.transactions {
		if t.ID == id {
			t.Details = s.detailsFor(id)
			return t, nil
		}
	}
	return Transaction{}, shared.ErrNotFound
}

func (s *memoryStore) detailsFor(transactionID int64) []TransactionDetail {
	out := []TransactionDetail{}
	for _, d := range s.details {
		if d.TransactionID == transactionID {
			out = append(out, d)
		}
	}
	return out
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	tx.nextID++
	t.ID = tx.nextID
	tx.transactions = append(tx.transactions, t)
	return t.ID, nil
}

func (tx *memoryTx) InsertDetail(ctx context.Context, d TransactionDetail) (int64, error) {
	tx.nextID++
	d.ID = tx.nextID
	tx.details = append(tx.details, d)
	return d.ID, nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	tx.nextID++
	p.ID = tx.nextID
	tx.payments = append(tx.payments, p)
	return p.ID, nil
}

func (tx *memoryTx) Ledger() ledger.TxRepository { return (*memoryLedgerTx)(tx) }

// memoryLedgerTx exposes the same staged state through the ledger's
// transactional interface.
type memoryLedgerTx memoryTx

func (tx *memoryLedgerTx) GetProductForUpdate(ctx context.Context, productID int64) (ledger.Product, error) {
	p, ok := tx.products[productID]
	if !ok {
		return ledger.Product{}, ledger.ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryLedgerTx) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	p, ok := tx.products[productID]
	if !ok {
		return ledger.ErrProductNotFound
	}
	p.StockQuantity = stock
	tx.products[productID] = p
	return nil
}

func (tx *memoryLedgerTx) InsertEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	tx.nextID++
	entry.ID = tx.nextID
	tx.logEntries = append(tx.logEntries, entry)
	return entry.ID, nil
}

func (tx *memoryLedgerTx) GetEntry(ctx context.Context, entryID int64) (ledger.Entry, error) {
	for _, e := range tx.logEntries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return ledger.Entry{}, ledger.ErrEntryNotFound
}

func (tx *memoryLedgerTx) UpdateEntry(ctx context.Context, entry ledger.Entry) error {
	for i, e := range tx.logEntries {
		if e.ID == entry.ID {
			tx.logEntries[i] = entry
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func (tx *memoryLedgerTx) DeleteEntry(ctx context.Context, entryID int64) error {
	for i, e := range tx.logEntries {
		if e.ID == entryID {
			tx.logEntries = append(tx.logEntries[:i], tx.logEntries[i+1:]...)
			return nil
		}
	}
	return ledger.ErrEntryNotFound
}

func newCheckoutService(store *memoryStore) *Service {
	ledgerSvc := ledger.NewService(nil, nil)
	return NewService(store, ledgerSvc, nil, nil)
}

type invalidatorStub struct {
	calls int
}

func (i *invalidatorStub) Invalidate(ctx context.Context) error {
	i.calls++
	return nil
}

func TestCheckoutHappyPath(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(
		ledger.Product{ID: 1, Name: "Kopi Susu", StockQuantity: 10},
		ledger.Product{ID: 2, Name: "Roti Bakar", StockQuantity: 4},
	)
	svc := newCheckoutService(store)

	result, err := svc.Checkout(ctx, CheckoutRequest{
		UserID:        7,
		PaymentMethod: "cash",
		TotalAmount:   46000,
		Items: []CheckoutItem{
			{ProductID: 1, Quantity: 2, Price: 15000},
			{ProductID: 2, Quantity: 2, Price: 8000},
		},
	})
	require.NoError(t, err)
	require.NotZero(t, result.ID)
	require.Len(t, result.Details, 2)
	require.Equal(t, float64(30000), result.Details[0].Subtotal)

	require.Equal(t, 8, store.products[1].StockQuantity)
	require.Equal(t, 2, store.products[2].StockQuantity)
	require.Len(t, store.logEntries, 2)
	require.Equal(t, ledger.ChangeTypeSale, store.logEntries[0].ChangeType)
	require.Equal(t, -2, store.logEntries[0].QuantityChange)
	require.Equal(t, 8, store.logEntries[0].CurrentStock)
	require.Len(t, store.payments, 1)
	require.Equal(t, "cash", store.payments[0].Method)
	require.Equal(t, float64(46000), store.payments[0].Amount)
}

func TestCheckoutInsufficientStockRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(
		ledger.Product{ID: 1, Name: "Kopi Susu", StockQuantity: 10},
		ledger.Product{ID: 2, Name: "Roti Bakar", StockQuantity: 1},
	)
	svc := newCheckoutService(store)

	_, err := svc.Checkout(ctx, CheckoutRequest{
		UserID:        7,
		PaymentMethod: "cash",
		TotalAmount:   46000,
		Items: []CheckoutItem{
			{ProductID: 1, Quantity: 2, Price: 15000},
			{ProductID: 2, Quantity: 2, Price: 8000},
		},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	var stockErr *ledger.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "Roti Bakar", stockErr.ProductName)

	// first line succeeded inside the tx, but nothing may survive
	require.Equal(t, 10, store.products[1].StockQuantity)
	require.Equal(t, 1, store.products[2].StockQuantity)
	require.Empty(t, store.transactions)
	require.Empty(t, store.details)
	require.Empty(t, store.payments)
	require.Empty(t, store.logEntries)
}

func TestCheckoutUnknownProductRollsBack(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(ledger.Product{ID: 1, Name: "Kopi Susu", StockQuantity: 10})
	svc := newCheckoutService(store)

	_, err := svc.Checkout(ctx, CheckoutRequest{
		UserID:        7,
		PaymentMethod: "qris",
		TotalAmount:   15000,
		Items: []CheckoutItem{
			{ProductID: 1, Quantity: 1, Price: 15000},
			{ProductID: 99, Quantity: 1, Price: 5000},
		},
	})
	require.ErrorIs(t, err, ledger.ErrProductNotFound)
	require.Equal(t, 10, store.products[1].StockQuantity)
	require.Empty(t, store.transactions)
	require.Empty(t, store.logEntries)
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	svc := newCheckoutService(newMemoryStore())
	_, err := svc.Checkout(context.Background(), CheckoutRequest{UserID: 1, PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutRejectsNonPositiveQuantity(t *testing.T) {
	store := newMemoryStore(ledger.Product{ID: 1, Name: "Kopi", StockQuantity: 5})
	svc := newCheckoutService(store)
	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		UserID:        1,
		PaymentMethod: "cash",
		Items:         []CheckoutItem{{ProductID: 1, Quantity: 0, Price: 1000}},
	})
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)
	require.Empty(t, store.transactions)
}

func TestCheckoutExpiresCachedReports(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(ledger.Product{ID: 1, Name: "Kopi", StockQuantity: 5})
	invalidator := &invalidatorStub{}
	svc := NewService(store, ledger.NewService(nil, nil), nil, invalidator)

	_, err := svc.Checkout(ctx, CheckoutRequest{
		UserID:        1,
		PaymentMethod: "cash",
		TotalAmount:   3000,
		Items:         []CheckoutItem{{ProductID: 1, Quantity: 3, Price: 1000}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, invalidator.calls)
}

func TestCheckoutFailureLeavesReportCacheAlone(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(ledger.Product{ID: 1, Name: "Kopi", StockQuantity: 1})
	invalidator := &invalidatorStub{}
	svc := NewService(store, ledger.NewService(nil, nil), nil, invalidator)

	_, err := svc.Checkout(ctx, CheckoutRequest{
		UserID:        1,
		PaymentMethod: "cash",
		TotalAmount:   2000,
		Items:         []CheckoutItem{{ProductID: 1, Quantity: 2, Price: 1000}},
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)
	require.Zero(t, invalidator.calls)
}

func TestCheckoutRemarkNamesTransaction(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(ledger.Product{ID: 1, Name: "Kopi", StockQuantity: 5})
	svc := newCheckoutService(store)

	result, err := svc.Checkout(ctx, CheckoutRequest{
		UserID:        1,
		PaymentMethod: "cash",
		TotalAmount:   3000,
		Items:         []CheckoutItem{{ProductID: 1, Quantity: 3, Price: 1000}},
	})
	require.NoError(t, err)
	require.Len(t, store.logEntries, 1)
	require.Contains(t, store.logEntries[0].Remarks, "during transaction")
	require.Contains(t, store.logEntries[0].Remarks, "1")
	require.Equal(t, result.ID, store.transactions[0].ID)
}
