package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memoryRepo mimics the PostgreSQL repository: WithTx serialises like a
// row lock and discards all staged writes when the callback fails.
type memoryRepo struct {
	mu       sync.Mutex
	products map[int64]Product
	entries  []Entry
	nextID   int64
}

type memoryTx struct {
	products map[int64]Product
	entries  []Entry
	nextID   int64
}

func newMemoryRepo(products ...Product) *memoryRepo {
	repo := &memoryRepo{products: make(map[int64]Product)}
	for _, p := range products {
		repo.products[p.ID] = p
	}
	return repo
}

func (r *memoryRepo) snapshot() *memoryTx {
	tx := &memoryTx{products: make(map[int64]Product, len(r.products)), nextID: r.nextID}
	for id, p := range r.products {
		tx.products[id] = p
	}
	tx.entries = append(tx.entries, r.entries...)
	return tx
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := r.snapshot()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.products = tx.products
	r.entries = tx.entries
	r.nextID = tx.nextID
	return nil
}

func (r *memoryRepo) ListEntries(ctx context.Context, filter ListFilter) ([]EntryWithProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EntryWithProduct
	for _, e := range r.entries {
		if filter.ProductID != 0 && e.ProductID != filter.ProductID {
			continue
		}
		name := ""
		if p, ok := r.products[e.ProductID]; ok {
			name = p.Name
		}
		out = append(out, EntryWithProduct{Entry: e, ProductName: name})
	}
	return out, nil
}

func (r *memoryRepo) SumEntries(ctx context.Context, productID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := 0
	for _, e := range r.entries {
		if e.ProductID == productID {
			sum += e.QuantityChange
		}
	}
	return sum, nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, productID int64) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) GetProductForUpdate(ctx context.Context, productID int64) (Product, error) {
	p, ok := tx.products[productID]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) UpdateProductStock(ctx context.Context, productID int64, stock int) error {
	p, ok := tx.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.StockQuantity = stock
	tx.products[productID] = p
	return nil
}

func (tx *memoryTx) InsertEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.nextID++
	entry.ID = tx.nextID
	tx.entries = append(tx.entries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) GetEntry(ctx context.Context, entryID int64) (Entry, error) {
	for _, e := range tx.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return Entry{}, ErrEntryNotFound
}

func (tx *memoryTx) UpdateEntry(ctx context.Context, entry Entry) error {
	for i, e := range tx.entries {
		if e.ID == entry.ID {
			tx.entries[i] = entry
			return nil
		}
	}
	return ErrEntryNotFound
}

func (tx *memoryTx) DeleteEntry(ctx context.Context, entryID int64) error {
	for i, e := range tx.entries {
		if e.ID == entryID {
			tx.entries = append(tx.entries[:i], tx.entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func TestRecordInitialStock(t *testing.T) {
	ctx := context.Background()

	repo := newMemoryRepo(Product{ID: 1, Name: "Kopi", StockQuantity: 0})
	svc := NewService(repo, nil)

	entry, err := svc.RecordInitialStock(ctx, 1, 0)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Empty(t, repo.entries)

	repo = newMemoryRepo(Product{ID: 1, Name: "Kopi", StockQuantity: 5})
	svc = NewService(repo, nil)
	entry, err = svc.RecordInitialStock(ctx, 1, 5)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, repo.entries, 1)
	require.Equal(t, ChangeTypeInitial, entry.ChangeType)
	require.Equal(t, 5, entry.QuantityChange)
	require.Equal(t, 5, entry.CurrentStock)
}

func TestApplySaleDeductsAndLogs(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Teh Botol", StockQuantity: 10})
	svc := NewService(repo, nil)

	entries, err := svc.ApplySale(ctx, SaleInput{Code: "TRX-1", Lines: []SaleLine{{ProductID: 1, Quantity: 4}}})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ChangeTypeSale, entries[0].ChangeType)
	require.Equal(t, -4, entries[0].QuantityChange)
	require.Equal(t, 6, entries[0].CurrentStock)
	require.Equal(t, 6, repo.products[1].StockQuantity)
	require.Contains(t, entries[0].Remarks, "TRX-1")
}

func TestApplySaleInsufficientStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Indomie", StockQuantity: 3})
	svc := NewService(repo, nil)

	_, err := svc.ApplySale(ctx, SaleInput{Code: "TRX-2", Lines: []SaleLine{{ProductID: 1, Quantity: 5}}})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var detail *InsufficientStockError
	require.ErrorAs(t, err, &detail)
	require.Equal(t, "Indomie", detail.ProductName)
	require.Equal(t, 5, detail.Requested)
	require.Equal(t, 3, detail.Available)

	require.Equal(t, 3, repo.products[1].StockQuantity)
	require.Empty(t, repo.entries)
}

func TestApplySaleUnknownProduct(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	_, err := svc.ApplySale(ctx, SaleInput{Code: "TRX-3", Lines: []SaleLine{{ProductID: 99, Quantity: 1}}})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestMultiLineSaleRollsBackFully(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(
		Product{ID: 1, Name: "Gula", StockQuantity: 10},
		Product{ID: 2, Name: "Garam", StockQuantity: 2},
	)
	svc := NewService(repo, nil)

	_, err := svc.ApplySale(ctx, SaleInput{Code: "TRX-4", Lines: []SaleLine{
		{ProductID: 1, Quantity: 4},
		{ProductID: 2, Quantity: 5},
	}})
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.Equal(t, 10, repo.products[1].StockQuantity)
	require.Equal(t, 2, repo.products[2].StockQuantity)
	require.Empty(t, repo.entries)
}

func TestAdjustmentAllowsNegativeStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Beras", StockQuantity: 10})
	svc := NewService(repo, nil)

	entry, err := svc.ApplyAdjustment(ctx, AdjustmentInput{ProductID: 1, QuantityChange: -3, Remarks: "damaged"})
	require.NoError(t, err)
	require.Equal(t, 7, entry.CurrentStock)
	require.Equal(t, 7, repo.products[1].StockQuantity)

	// No floor at zero: a large negative delta drives stock negative.
	entry, err = svc.ApplyAdjustment(ctx, AdjustmentInput{ProductID: 1, QuantityChange: -10, Remarks: "write-off"})
	require.NoError(t, err)
	require.Equal(t, -3, entry.CurrentStock)
	require.Equal(t, -3, repo.products[1].StockQuantity)
}

func TestDeleteEntryRestoresStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Susu", StockQuantity: 10})
	svc := NewService(repo, nil)

	entries, err := svc.ApplySale(ctx, SaleInput{Code: "TRX-5", Lines: []SaleLine{{ProductID: 1, Quantity: 4}}})
	require.NoError(t, err)
	require.Equal(t, 6, repo.products[1].StockQuantity)

	require.NoError(t, svc.DeleteEntry(ctx, entries[0].ID, 0))
	require.Equal(t, 10, repo.products[1].StockQuantity)
	require.Empty(t, repo.entries)

	require.ErrorIs(t, svc.DeleteEntry(ctx, entries[0].ID, 0), ErrEntryNotFound)
}

func TestReviseEntrySameProduct(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Roti", StockQuantity: 0})
	svc := NewService(repo, nil)

	entry, err := svc.ApplyAdjustment(ctx, AdjustmentInput{ProductID: 1, QuantityChange: 8, Remarks: "stock in"})
	require.NoError(t, err)
	require.Equal(t, 8, repo.products[1].StockQuantity)

	revised, err := svc.ReviseEntry(ctx, ReviseInput{
		EntryID:        entry.ID,
		ProductID:      1,
		ChangeType:     ChangeTypeAdjustment,
		QuantityChange: 5,
		Remarks:        "typo: 8 was 5",
	})
	require.NoError(t, err)
	require.Equal(t, 5, revised.QuantityChange)
	require.Equal(t, 5, repo.products[1].StockQuantity)
	require.Len(t, repo.entries, 1)
}

func TestReviseEntryMovesAcrossProducts(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(
		Product{ID: 1, Name: "Kecap", StockQuantity: 0},
		Product{ID: 2, Name: "Saos", StockQuantity: 3},
	)
	svc := NewService(repo, nil)

	entry, err := svc.ApplyAdjustment(ctx, AdjustmentInput{ProductID: 1, QuantityChange: 6, Remarks: "stock in"})
	require.NoError(t, err)

	revised, err := svc.ReviseEntry(ctx, ReviseInput{
		EntryID:        entry.ID,
		ProductID:      2,
		ChangeType:     ChangeTypeAdjustment,
		QuantityChange: 6,
		Remarks:        "booked on wrong product",
	})
	require.NoError(t, err)
	require.Equal(t, 0, repo.products[1].StockQuantity)
	require.Equal(t, 9, repo.products[2].StockQuantity)
	require.Equal(t, 9, revised.CurrentStock)
}

func TestCorrectEntryAppendsReversalPair(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Minyak", StockQuantity: 0})
	svc := NewService(repo, nil)

	entry, err := svc.ApplyAdjustment(ctx, AdjustmentInput{ProductID: 1, QuantityChange: 10, Remarks: "stock in"})
	require.NoError(t, err)

	reversal, replacement, err := svc.CorrectEntry(ctx, entry.ID, 7, "count was 7", 0)
	require.NoError(t, err)
	require.Equal(t, -10, reversal.QuantityChange)
	require.Equal(t, 7, replacement.QuantityChange)
	require.Equal(t, 7, repo.products[1].StockQuantity)
	// Original entry untouched, log now has three rows.
	require.Len(t, repo.entries, 3)
	require.Equal(t, 10, repo.entries[0].QuantityChange)
}

func TestReplayReproducesStock(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Telur", StockQuantity: 20})
	svc := NewService(repo, nil)

	_, err := svc.RecordInitialStock(ctx, 1, 20)
	require.NoError(t, err)
	_, err = svc.ApplySale(ctx, SaleInput{Code: "TRX-6", Lines: []SaleLine{{ProductID: 1, Quantity: 7}}})
	require.NoError(t, err)
	_, err = svc.ApplyAdjustment(ctx, AdjustmentInput{ProductID: 1, QuantityChange: 4, Remarks: "restock"})
	require.NoError(t, err)
	_, err = svc.ApplySale(ctx, SaleInput{Code: "TRX-7", Lines: []SaleLine{{ProductID: 1, Quantity: 2}}})
	require.NoError(t, err)

	result, err := svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	require.True(t, result.Consistent())
	require.Equal(t, 15, result.Stored)
	require.Equal(t, 15, result.Replayed)
}

func TestReconcileDetectsDrift(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Tepung", StockQuantity: 9})
	svc := NewService(repo, nil)

	_, err := svc.RecordInitialStock(ctx, 1, 9)
	require.NoError(t, err)

	// Simulate a mutation that bypassed the ledger.
	repo.products[1] = Product{ID: 1, Name: "Tepung", StockQuantity: 12}

	result, err := svc.Reconcile(ctx, 1)
	require.NoError(t, err)
	require.False(t, result.Consistent())
	require.Equal(t, 3, result.Drift)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Aqua", StockQuantity: 5})
	svc := NewService(repo, nil)

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.ApplySale(ctx, SaleInput{Code: "TRX-C", Lines: []SaleLine{{ProductID: 1, Quantity: 3}}})
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var failures, successes int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrInsufficientStock):
			failures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, failures)
	require.Equal(t, 2, repo.products[1].StockQuantity)
	require.GreaterOrEqual(t, repo.products[1].StockQuantity, 0)
}

func TestApplySaleRejectsNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(Product{ID: 1, Name: "Sabun", StockQuantity: 5})
	svc := NewService(repo, nil)

	_, err := svc.ApplySale(ctx, SaleInput{Code: "TRX-8", Lines: []SaleLine{{ProductID: 1, Quantity: 0}}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.ApplySale(ctx, SaleInput{Code: "TRX-9", Lines: nil})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
