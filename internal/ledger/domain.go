package ledger

import (
	"errors"
	"fmt"
	"time"
)

// ChangeType enumerates the reason codes recorded on log entries.
type ChangeType string

const (
	// ChangeTypeInitial marks the entry written when a product is created with stock.
	ChangeTypeInitial ChangeType = "Initial Stock"
	// ChangeTypeSale marks a deduction caused by a sales transaction.
	ChangeTypeSale ChangeType = "Sale"
	// ChangeTypeAdjustment marks a manual stock correction.
	ChangeTypeAdjustment ChangeType = "Adjustment"
	// ChangeTypeReversal marks an append-only offset written by CorrectEntry.
	ChangeTypeReversal ChangeType = "Reversal"
)

// Product is the slice of the catalog the ledger mutates: the cached
// running total lives on the product row and changes only through
// ledger operations.
type Product struct {
	ID            int64
	Name          string
	StockQuantity int
}

// Entry is one recorded stock change. QuantityChange is signed
// (positive = stock in) and CurrentStock is the snapshot of the
// product's stock immediately after the change was applied.
type Entry struct {
	ID             int64
	ProductID      int64
	ChangeType     ChangeType
	QuantityChange int
	Remarks        string
	CreatedAt      time.Time
	CurrentStock   int
}

// EntryWithProduct enriches an entry with the product display name at
// read time.
type EntryWithProduct struct {
	Entry
	ProductName string
}

// SaleLine is one line item of a sale to be applied against stock.
type SaleLine struct {
	ProductID int64
	Quantity  int
}

// SaleInput groups the line items of a single sale. Code identifies the
// enclosing transaction and is referenced from entry remarks.
type SaleInput struct {
	Code  string
	Lines []SaleLine
}

// AdjustmentInput describes a manual stock correction. QuantityChange
// carries its own sign; the ledger applies it as-is.
type AdjustmentInput struct {
	ProductID      int64
	ChangeType     ChangeType
	QuantityChange int
	Remarks        string
	ActorID        int64
}

// ReviseInput overwrites an existing entry in place, moving its effect
// from the original product to NewProductID.
type ReviseInput struct {
	EntryID        int64
	ProductID      int64
	ChangeType     ChangeType
	QuantityChange int
	Remarks        string
	ActorID        int64
}

// ListFilter narrows List output.
type ListFilter struct {
	ProductID int64
	Limit     int
}

// ReconcileResult compares the cached stock total against a replay of
// the full log.
type ReconcileResult struct {
	ProductID int64
	Stored    int
	Replayed  int
	Drift     int
}

// Consistent reports whether the cached total matches the replayed log.
func (r ReconcileResult) Consistent() bool {
	return r.Drift == 0
}

var (
	// ErrProductNotFound indicates the referenced product row is absent.
	ErrProductNotFound = errors.New("ledger: product not found")
	// ErrEntryNotFound indicates the referenced log entry is absent.
	ErrEntryNotFound = errors.New("ledger: log entry not found")
	// ErrInvalidQuantity indicates a non-positive sale quantity or a zero delta.
	ErrInvalidQuantity = errors.New("ledger: invalid quantity")
	// ErrInsufficientStock is matched by InsufficientStockError via errors.Is.
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
)

// InsufficientStockError names the product that could not cover a sale.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("ledger: not enough stock for product %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

// Is lets callers match the sentinel without losing the detail.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
