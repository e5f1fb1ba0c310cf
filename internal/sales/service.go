package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kasirpos/kasirpos/internal/ledger"
	"github.com/kasirpos/kasirpos/internal/shared"
)

// ErrEmptyCart indicates a checkout without line items.
var ErrEmptyCart = errors.New("transaction has no items")

// LedgerPort is the slice of the inventory ledger a checkout needs:
// deducting one sale line inside the checkout's own transaction.
type LedgerPort interface {
	ApplySaleLine(ctx context.Context, tx ledger.TxRepository, code string, line ledger.SaleLine) (ledger.Entry, error)
}

// Service orchestrates checkouts. The header, detail lines, payment
// and every stock deduction run in a single database transaction, so a
// failing line leaves no trace of the sale.
type Service struct {
	repo    RepositoryPort
	ledger  LedgerPort
	audit   AuditPort
	reports ReportsPort
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReportsPort expires cached sales figures after a committed checkout.
type ReportsPort interface {
	Invalidate(ctx context.Context) error
}

// NewService builds Service.
func NewService(repo RepositoryPort, ledger LedgerPort, audit AuditPort, reports ReportsPort) *Service {
	return &Service{repo: repo, ledger: ledger, audit: audit, reports: reports}
}

// Checkout records a sale end to end.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (Transaction, error) {
	if len(req.Items) == 0 {
		return Transaction{}, ErrEmptyCart
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return Transaction{}, fmt.Errorf("%w: quantity for product %d must be positive", ledger.ErrInvalidQuantity, item.ProductID)
		}
	}

	var result Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header := Transaction{
			UserID:        req.UserID,
			PaymentMethod: req.PaymentMethod,
			TotalAmount:   req.TotalAmount,
		}
		id, err := tx.InsertTransaction(ctx, header)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		header.ID = id
		code := strconv.FormatInt(id, 10)

		details := make([]TransactionDetail, 0, len(req.Items))
		for _, item := range req.Items {
			detail := TransactionDetail{
				TransactionID: id,
				ProductID:     item.ProductID,
				Quantity:      item.Quantity,
				Price:         item.Price,
				Subtotal:      float64(item.Quantity) * item.Price,
			}
			if detail.ID, err = tx.InsertDetail(ctx, detail); err != nil {
				return fmt.Errorf("insert detail: %w", err)
			}
			if _, err := s.ledger.ApplySaleLine(ctx, tx.Ledger(), code, ledger.SaleLine{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			}); err != nil {
				return err
			}
			details = append(details, detail)
		}

		if _, err := tx.InsertPayment(ctx, Payment{
			TransactionID: id,
			Method:        req.PaymentMethod,
			Amount:        req.TotalAmount,
		}); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		header.Details = details
		result = header
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  req.UserID,
			Action:   "sales:checkout",
			Entity:   "transaction",
			EntityID: strconv.FormatInt(result.ID, 10),
			Meta: map[string]any{
				"payment_method": req.PaymentMethod,
				"total_amount":   req.TotalAmount,
				"line_count":     len(req.Items),
			},
		})
	}
	if s.reports != nil {
		// The sale is already committed; invalidation failures do not undo it.
		_ = s.reports.Invalidate(ctx)
	}
	return result, nil
}

// List returns past transactions with their line items.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one transaction with its line items.
func (s *Service) Get(ctx context.Context, id int64) (Transaction, error) {
	if id <= 0 {
		return Transaction{}, shared.ErrNotFound
	}
	return s.repo.Get(ctx, id)
}
