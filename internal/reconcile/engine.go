package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"paydibs/internal/gateway"
	"paydibs/internal/models"
)

// Outcome classifies how a notification was handled.
type Outcome int

const (
	// OutcomeApplied: the notification caused a state transition (or a
	// pending note) on the order.
	OutcomeApplied Outcome = iota + 1
	// OutcomeDuplicate: the notification had already been applied; no
	// side effects ran.
	OutcomeDuplicate
)

// Result is the channel-neutral outcome of applying a notification. The
// entry points translate it into their channel's response shape.
type Result struct {
	Outcome Outcome
	Reason  DuplicateReason
	Status  string
	Order   *models.Order
}

// Success reports whether the notification described a successful payment.
func (r *Result) Success() bool {
	return r.Status == gateway.StatusSuccess
}

// Pending reports whether the gateway has not finished the transaction.
func (r *Result) Pending() bool {
	return r.Status == gateway.StatusPending
}

// Config carries the merchant policies the engine honors.
type Config struct {
	// RestoreCart reactivates the originating quote after a failed
	// payment so the customer can reorder.
	RestoreCart bool
	// RequireSignature rejects notifications that carry no Sign field.
	// When unset, unsigned notifications are accepted and only present
	// signatures are verified.
	RequireSignature bool
}

// Engine is the single status-transition engine behind all three
// reconciliation channels. It verifies signatures, applies the
// idempotency guard and drives the order payment-state machine under a
// per-order lock.
type Engine struct {
	orders   OrderStore
	quotes   QuoteStore
	invoices InvoiceService
	emails   EmailSender
	locker   OrderLocker
	signer   *gateway.Signer
	cfg      Config
	logger   *zap.Logger
}

func NewEngine(
	orders OrderStore,
	quotes QuoteStore,
	invoices InvoiceService,
	emails EmailSender,
	locker OrderLocker,
	signer *gateway.Signer,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		orders:   orders,
		quotes:   quotes,
		invoices: invoices,
		emails:   emails,
		locker:   locker,
		signer:   signer,
		cfg:      cfg,
		logger:   logger,
	}
}

// Apply reconciles one gateway notification against the order it names.
// It is safe to call redundantly from any channel: the same (order,
// transaction id) pair is applied at most once.
func (e *Engine) Apply(ctx context.Context, n *gateway.Notification) (*Result, error) {
	if n.MerchantPymtID == "" || n.PTxnStatus == "" {
		return nil, ErrMissingField
	}

	release, err := e.locker.Lock(ctx, n.MerchantPymtID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := e.orders.FindByIncrementID(ctx, n.MerchantPymtID)
	if err != nil {
		return nil, err
	}

	if dup, reason := AlreadyApplied(order, n); dup {
		e.logger.Info("Notification already applied",
			zap.String("order", n.MerchantPymtID),
			zap.String("ptxn_id", n.PTxnID),
			zap.Int("reason", int(reason)))
		// A failure replay still honors the cart-restoration policy:
		// the redirect and the callback can both observe the same
		// failure, and only one of them cancels.
		if reason == ReasonOrderCanceled && e.cfg.RestoreCart {
			e.restoreQuote(ctx, order)
		}
		return &Result{Outcome: OutcomeDuplicate, Reason: reason, Status: n.PTxnStatus, Order: order}, nil
	}

	if n.Sign != "" {
		if !e.signer.VerifyNotification(n) {
			e.logger.Warn("Signature verification failed",
				zap.String("order", n.MerchantPymtID),
				zap.String("ptxn_id", n.PTxnID))
			return nil, ErrInvalidSignature
		}
	} else if e.cfg.RequireSignature {
		return nil, fmt.Errorf("unsigned notification for order %s: %w", n.MerchantPymtID, ErrInvalidSignature)
	}

	switch {
	case n.PTxnStatus == gateway.StatusSuccess:
		return e.applySuccess(ctx, order, n)
	case n.PTxnStatus == gateway.StatusPending:
		return e.applyPending(ctx, order, n)
	case gateway.IsFailure(n.PTxnStatus):
		return e.applyFailure(ctx, order, n)
	default:
		return nil, fmt.Errorf("status %q for order %s: %w", n.PTxnStatus, n.MerchantPymtID, ErrUnknownStatus)
	}
}

func (e *Engine) applySuccess(ctx context.Context, order *models.Order, n *gateway.Notification) (*Result, error) {
	order.LastTransID = n.PTxnID
	order.ProcessedTxnID = n.PTxnID
	order.TxnAmount = n.MerchantTxnAmt
	order.TxnCurrency = n.MerchantCurrCode
	order.AuthCode = n.AuthCode
	order.TxnMessage = n.PTxnMsg
	order.State = models.OrderStateProcessing
	order.Status = models.OrderStateProcessing
	order.AddHistory(models.OrderStateProcessing,
		fmt.Sprintf("Payment successfully processed by Paydibs. Transaction ID: %s", n.PTxnID))

	// Invoicing must not fail the transition.
	if !order.Invoiced {
		invoice, err := e.invoices.CreateCaptureInvoice(ctx, order)
		if err != nil {
			e.logger.Error("Error creating invoice",
				zap.String("order", order.IncrementID), zap.Error(err))
		} else {
			order.Invoiced = true
			order.AddHistory(models.OrderStateProcessing,
				fmt.Sprintf("Invoice #%s created.", invoice.IncrementID))
			if e.emails != nil {
				if err := e.emails.SendInvoice(ctx, order, invoice); err != nil {
					e.logger.Error("Error sending invoice email",
						zap.String("order", order.IncrementID), zap.Error(err))
				}
			}
		}
	}

	if e.emails != nil && !order.EmailSent {
		if err := e.emails.SendOrderConfirmation(ctx, order); err != nil {
			e.logger.Error("Error sending order confirmation",
				zap.String("order", order.IncrementID), zap.Error(err))
		} else {
			order.EmailSent = true
		}
	}

	if err := e.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", order.IncrementID, err)
	}

	// Deactivate the originating cart; a stale quote is not worth
	// failing a captured payment over.
	if err := e.quotes.Deactivate(ctx, order.QuoteID); err != nil {
		e.logger.Error("Error clearing cart",
			zap.String("order", order.IncrementID),
			zap.Uint("quote_id", order.QuoteID), zap.Error(err))
	}

	e.logger.Info("Payment successful",
		zap.String("order", order.IncrementID), zap.String("ptxn_id", n.PTxnID))
	return &Result{Outcome: OutcomeApplied, Status: n.PTxnStatus, Order: order}, nil
}

func (e *Engine) applyPending(ctx context.Context, order *models.Order, n *gateway.Notification) (*Result, error) {
	// Pending never mutates payment-state and never claims the
	// idempotency marker: the terminal notification for the same
	// transaction id must still go through.
	order.AddHistory(models.OrderStatePendingPayment,
		fmt.Sprintf("Payment pending at Paydibs. Transaction ID: %s", n.PTxnID))

	if err := e.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", order.IncrementID, err)
	}

	e.logger.Info("Payment pending",
		zap.String("order", order.IncrementID), zap.String("ptxn_id", n.PTxnID))
	return &Result{Outcome: OutcomeApplied, Status: n.PTxnStatus, Order: order}, nil
}

func (e *Engine) applyFailure(ctx context.Context, order *models.Order, n *gateway.Notification) (*Result, error) {
	for i := range order.Items {
		order.Items[i].Canceled = true
	}
	order.ProcessedTxnID = n.PTxnID
	order.TxnMessage = n.PTxnMsg
	order.State = models.OrderStateCanceled
	order.Status = models.OrderStateCanceled
	order.AddHistory(models.OrderStateCanceled,
		fmt.Sprintf("Payment failed at Paydibs. Status: %s, Error: %s", n.PTxnStatus, n.Message()))

	if err := e.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order %s: %w", order.IncrementID, err)
	}

	if e.cfg.RestoreCart {
		e.restoreQuote(ctx, order)
	}

	e.logger.Info("Payment failed",
		zap.String("order", order.IncrementID),
		zap.String("status", n.PTxnStatus),
		zap.String("message", n.Message()))
	return &Result{Outcome: OutcomeApplied, Status: n.PTxnStatus, Order: order}, nil
}

func (e *Engine) restoreQuote(ctx context.Context, order *models.Order) {
	if err := e.quotes.Restore(ctx, order.QuoteID); err != nil {
		e.logger.Error("Error restoring quote",
			zap.String("order", order.IncrementID),
			zap.Uint("quote_id", order.QuoteID), zap.Error(err))
		return
	}
	e.logger.Info("Cart restored",
		zap.String("order", order.IncrementID), zap.Uint("quote_id", order.QuoteID))
}
