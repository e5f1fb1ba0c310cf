package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/kasirpos/kasirpos/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates all stock mutations. Every write path locks the
// product row first, so the cached stock_quantity and the log stay in
// step and concurrent sales against the same product serialise.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// RecordInitialStock writes the opening log entry for a freshly created
// product. The product row already carries qty as its stock; a
// non-positive qty records nothing.
func (s *Service) RecordInitialStock(ctx context.Context, productID int64, qty int) (*Entry, error) {
	if qty <= 0 {
		return nil, nil
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		entry = Entry{
			ProductID:      product.ID,
			ChangeType:     ChangeTypeInitial,
			QuantityChange: qty,
			Remarks:        "Product created with initial stock",
			CurrentStock:   product.StockQuantity,
		}
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, 0, "ledger:initial", entry)
	return &entry, nil
}

// ApplySaleLine deducts one sale line inside the caller's transaction.
// It is the primitive the sales module composes into its checkout
// transaction so header, details and stock changes commit or roll back
// together.
func (s *Service) ApplySaleLine(ctx context.Context, tx TxRepository, code string, line SaleLine) (Entry, error) {
	if line.Quantity <= 0 {
		return Entry{}, fmt.Errorf("%w: sale quantity must be positive", ErrInvalidQuantity)
	}
	product, err := tx.GetProductForUpdate(ctx, line.ProductID)
	if err != nil {
		return Entry{}, err
	}
	if product.StockQuantity < line.Quantity {
		return Entry{}, &InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   line.Quantity,
			Available:   product.StockQuantity,
		}
	}
	newStock := product.StockQuantity - line.Quantity
	if err := tx.UpdateProductStock(ctx, product.ID, newStock); err != nil {
		return Entry{}, err
	}
	entry := Entry{
		ProductID:      product.ID,
		ChangeType:     ChangeTypeSale,
		QuantityChange: -line.Quantity,
		Remarks:        fmt.Sprintf("Sold %d during transaction %s", line.Quantity, code),
		CurrentStock:   newStock,
	}
	id, err := tx.InsertEntry(ctx, entry)
	if err != nil {
		return Entry{}, err
	}
	entry.ID = id
	return entry, nil
}

// ApplySale deducts every line of a sale in one transaction. Any
// failing line rolls back all stock changes and log entries of the sale.
func (s *Service) ApplySale(ctx context.Context, input SaleInput) ([]Entry, error) {
	if len(input.Lines) == 0 {
		return nil, fmt.Errorf("%w: sale has no line items", ErrInvalidQuantity)
	}
	var entries []Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entries = entries[:0]
		for _, line := range input.Lines {
			entry, err := s.ApplySaleLine(ctx, tx, input.Code, line)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ApplyAdjustment applies a signed manual correction. The delta is
// taken as-is and the stock is allowed to go negative, matching the
// historical behaviour of manual adjustments.
func (s *Service) ApplyAdjustment(ctx context.Context, input AdjustmentInput) (Entry, error) {
	if input.QuantityChange == 0 {
		return Entry{}, fmt.Errorf("%w: adjustment delta must be non-zero", ErrInvalidQuantity)
	}
	changeType := input.ChangeType
	if changeType == "" {
		changeType = ChangeTypeAdjustment
	}
	var entry Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		newStock := product.StockQuantity + input.QuantityChange
		if err := tx.UpdateProductStock(ctx, product.ID, newStock); err != nil {
			return err
		}
		entry = Entry{
			ProductID:      product.ID,
			ChangeType:     changeType,
			QuantityChange: input.QuantityChange,
			Remarks:        input.Remarks,
			CurrentStock:   newStock,
		}
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return err
		}
		entry.ID = id
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "ledger:adjust", entry)
	return entry, nil
}

// ReviseEntry overwrites a log entry in place: the original delta is
// backed out of the original product, the new delta applied to the new
// one, and the entry rewritten, all inside one transaction. Products are
// locked in ascending id order to avoid deadlocks between concurrent
// revisions. CorrectEntry is the append-only alternative.
func (s *Service) ReviseEntry(ctx context.Context, input ReviseInput) (Entry, error) {
	if input.QuantityChange == 0 {
		return Entry{}, fmt.Errorf("%w: revised delta must be non-zero", ErrInvalidQuantity)
	}
	var revised Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntry(ctx, input.EntryID)
		if err != nil {
			return err
		}
		newStock, err := s.moveEffect(ctx, tx, original.ProductID, original.QuantityChange, input.ProductID, input.QuantityChange)
		if err != nil {
			return err
		}
		revised = Entry{
			ID:             original.ID,
			ProductID:      input.ProductID,
			ChangeType:     input.ChangeType,
			QuantityChange: input.QuantityChange,
			Remarks:        input.Remarks,
			CreatedAt:      original.CreatedAt,
			CurrentStock:   newStock,
		}
		return tx.UpdateEntry(ctx, revised)
	})
	if err != nil {
		return Entry{}, err
	}
	s.recordAudit(ctx, input.ActorID, "ledger:revise", revised)
	return revised, nil
}

// DeleteEntry backs the entry's delta out of its product and removes
// the row.
func (s *Service) DeleteEntry(ctx context.Context, entryID, actorID int64) error {
	var removed Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		removed = entry
		if err := s.reverseOnProduct(ctx, tx, entry.ProductID, entry.QuantityChange); err != nil {
			return err
		}
		return tx.DeleteEntry(ctx, entry.ID)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "ledger:delete", removed)
	return nil
}

// CorrectEntry expresses a correction as two appended entries: a
// reversal of the original delta and a replacement with the new one.
// The original entry is left untouched, keeping the log replayable as
// an event record.
func (s *Service) CorrectEntry(ctx context.Context, entryID int64, newDelta int, remarks string, actorID int64) (Entry, Entry, error) {
	if newDelta == 0 {
		return Entry{}, Entry{}, fmt.Errorf("%w: corrected delta must be non-zero", ErrInvalidQuantity)
	}
	var reversal, replacement Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return err
		}
		product, err := tx.GetProductForUpdate(ctx, original.ProductID)
		if err != nil {
			return err
		}
		afterReversal := product.StockQuantity - original.QuantityChange
		reversal = Entry{
			ProductID:      product.ID,
			ChangeType:     ChangeTypeReversal,
			QuantityChange: -original.QuantityChange,
			Remarks:        fmt.Sprintf("Reversal of log entry %d", original.ID),
			CurrentStock:   afterReversal,
		}
		if reversal.ID, err = tx.InsertEntry(ctx, reversal); err != nil {
			return err
		}
		finalStock := afterReversal + newDelta
		replacement = Entry{
			ProductID:      product.ID,
			ChangeType:     original.ChangeType,
			QuantityChange: newDelta,
			Remarks:        remarks,
			CurrentStock:   finalStock,
		}
		if replacement.ID, err = tx.InsertEntry(ctx, replacement); err != nil {
			return err
		}
		return tx.UpdateProductStock(ctx, product.ID, finalStock)
	})
	if err != nil {
		return Entry{}, Entry{}, err
	}
	s.recordAudit(ctx, actorID, "ledger:correct", replacement)
	return reversal, replacement, nil
}

// List returns log entries, optionally filtered by product, oldest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]EntryWithProduct, error) {
	return s.repo.ListEntries(ctx, filter)
}

// Reconcile replays the full log for a product and compares the result
// with the cached stock_quantity. Drift means some mutation bypassed the
// ledger.
func (s *Service) Reconcile(ctx context.Context, productID int64) (ReconcileResult, error) {
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return ReconcileResult{}, err
	}
	replayed, err := s.repo.SumEntries(ctx, productID)
	if err != nil {
		return ReconcileResult{}, err
	}
	return ReconcileResult{
		ProductID: productID,
		Stored:    product.StockQuantity,
		Replayed:  replayed,
		Drift:     product.StockQuantity - replayed,
	}, nil
}

// moveEffect backs origDelta out of origProduct and applies newDelta to
// newProduct, returning the new product's resulting stock. A missing
// original product is tolerated: log entries may outlive the product
// they reference.
func (s *Service) moveEffect(ctx context.Context, tx TxRepository, origProduct int64, origDelta int, newProduct int64, newDelta int) (int, error) {
	if origProduct == newProduct {
		product, err := tx.GetProductForUpdate(ctx, newProduct)
		if err != nil {
			return 0, err
		}
		stock := product.StockQuantity - origDelta + newDelta
		return stock, tx.UpdateProductStock(ctx, product.ID, stock)
	}

	// Lock both rows in ascending id order.
	first, second := origProduct, newProduct
	if first > second {
		first, second = second, first
	}
	locked := make(map[int64]*Product, 2)
	for _, id := range []int64{first, second} {
		p, err := tx.GetProductForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) && id == origProduct {
				continue
			}
			return 0, err
		}
		locked[id] = &p
	}
	if orig, ok := locked[origProduct]; ok {
		if err := tx.UpdateProductStock(ctx, orig.ID, orig.StockQuantity-origDelta); err != nil {
			return 0, err
		}
	}
	dest, ok := locked[newProduct]
	if !ok {
		return 0, ErrProductNotFound
	}
	stock := dest.StockQuantity + newDelta
	return stock, tx.UpdateProductStock(ctx, dest.ID, stock)
}

// reverseOnProduct subtracts delta from the product's stock, tolerating
// a product that no longer exists.
func (s *Service) reverseOnProduct(ctx context.Context, tx TxRepository, productID int64, delta int) error {
	product, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil
		}
		return err
	}
	return tx.UpdateProductStock(ctx, product.ID, product.StockQuantity-delta)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entry Entry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_log",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta: map[string]any{
			"product_id":      entry.ProductID,
			"change_type":     string(entry.ChangeType),
			"quantity_change": entry.QuantityChange,
			"current_stock":   entry.CurrentStock,
		},
	})
}
