package reconcile

import (
	"context"
	"time"

	"paydibs/internal/models"
)

// OrderStore is the narrow order-lookup-and-mutate surface the engine needs.
// Save must persist the order together with its items and any appended
// status-history notes atomically.
type OrderStore interface {
	FindByIncrementID(ctx context.Context, incrementID string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	FindPendingInWindow(ctx context.Context, method string, from, to time.Time) ([]models.Order, error)
}

// QuoteStore restores or deactivates the cart a canceled or completed order
// originated from.
type QuoteStore interface {
	Deactivate(ctx context.Context, quoteID uint) error
	Restore(ctx context.Context, quoteID uint) error
}

// InvoiceService creates a capture-online invoice for a paid order.
type InvoiceService interface {
	CreateCaptureInvoice(ctx context.Context, order *models.Order) (*models.Invoice, error)
}

// EmailSender delivers order and invoice confirmations. Failures are never
// fatal to a transition.
type EmailSender interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendInvoice(ctx context.Context, order *models.Order, invoice *models.Invoice) error
}

// OrderLocker provides the per-order mutual-exclusion boundary around the
// check-then-act sequence. Lock blocks until the lock is held or the wait
// deadline passes, and returns the release function.
type OrderLocker interface {
	Lock(ctx context.Context, incrementID string) (func(), error)
}
