package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paydibs/internal/gateway"
	"paydibs/internal/models"
	"paydibs/internal/reconcile"
)

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	saves  int
	saveFn func(*models.Order) error
}

func newFakeOrderStore(orders ...*models.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[string]*models.Order)}
	for _, o := range orders {
		s.orders[o.IncrementID] = o
	}
	return s
}

func (s *fakeOrderStore) FindByIncrementID(_ context.Context, incrementID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[incrementID]
	if !ok {
		return nil, reconcile.ErrOrderNotFound
	}
	return order, nil
}

func (s *fakeOrderStore) Save(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveFn != nil {
		return s.saveFn(order)
	}
	s.saves++
	return nil
}

func (s *fakeOrderStore) FindPendingInWindow(_ context.Context, method string, from, to time.Time) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.PaymentMethod == method && o.State == models.OrderStatePendingPayment {
			out = append(out, *o)
		}
	}
	return out, nil
}

type fakeQuoteStore struct {
	mu          sync.Mutex
	deactivated []uint
	restored    []uint
	restoreErr  error
}

func (s *fakeQuoteStore) Deactivate(_ context.Context, quoteID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated = append(s.deactivated, quoteID)
	return nil
}

func (s *fakeQuoteStore) Restore(_ context.Context, quoteID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restoreErr != nil {
		return s.restoreErr
	}
	s.restored = append(s.restored, quoteID)
	return nil
}

type fakeInvoiceService struct {
	mu      sync.Mutex
	created int
	err     error
}

func (s *fakeInvoiceService) CreateCaptureInvoice(_ context.Context, order *models.Order) (*models.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.created++
	return &models.Invoice{OrderID: order.ID, IncrementID: "INV-1"}, nil
}

type fakeEmailSender struct {
	mu            sync.Mutex
	confirmations int
	invoices      int
	confirmErr    error
}

func (s *fakeEmailSender) SendOrderConfirmation(_ context.Context, _ *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmErr != nil {
		return s.confirmErr
	}
	s.confirmations++
	return nil
}

func (s *fakeEmailSender) SendInvoice(_ context.Context, _ *models.Order, _ *models.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices++
	return nil
}

type engineFixture struct {
	engine   *reconcile.Engine
	orders   *fakeOrderStore
	quotes   *fakeQuoteStore
	invoices *fakeInvoiceService
	emails   *fakeEmailSender
	signer   *gateway.Signer
}

func newEngineFixture(t *testing.T, cfg reconcile.Config, orders ...*models.Order) *engineFixture {
	t.Helper()

	store := newFakeOrderStore(orders...)
	quotes := &fakeQuoteStore{}
	invoices := &fakeInvoiceService{}
	emails := &fakeEmailSender{}
	signer := gateway.NewSigner("secret")

	locker, err := reconcile.NewOrderLocker("", "", 0, 0)
	require.NoError(t, err)

	return &engineFixture{
		engine:   reconcile.NewEngine(store, quotes, invoices, emails, locker, signer, cfg, zap.NewNop()),
		orders:   store,
		quotes:   quotes,
		invoices: invoices,
		emails:   emails,
		signer:   signer,
	}
}

func pendingOrder() *models.Order {
	return &models.Order{
		ID:            1,
		IncrementID:   "100000042",
		State:         models.OrderStatePendingPayment,
		Status:        models.OrderStatePendingPayment,
		QuoteID:       7,
		GrandTotal:    "120.00",
		CurrencyCode:  "MYR",
		PaymentMethod: models.PaymentMethodPaydibs,
		Items: []models.OrderItem{
			{ID: 1, OrderID: 1, Sku: "SKU-1", QtyOrdered: 1},
			{ID: 2, OrderID: 1, Sku: "SKU-2", QtyOrdered: 2},
		},
	}
}

func successNotification(order *models.Order) *gateway.Notification {
	return &gateway.Notification{
		MerchantID:       "MID001",
		MerchantPymtID:   order.IncrementID,
		PTxnID:           "TXN-9",
		PTxnStatus:       gateway.StatusSuccess,
		MerchantTxnAmt:   order.GrandTotal,
		MerchantCurrCode: order.CurrencyCode,
		AuthCode:         "AUTH1",
		PTxnMsg:          "Approved",
	}
}

func TestEngine_ApplySuccess(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)

	res, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.NoError(t, err)

	require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
	require.True(t, res.Success())
	require.Equal(t, models.OrderStateProcessing, order.State)
	require.Equal(t, "TXN-9", order.ProcessedTxnID)
	require.Equal(t, "TXN-9", order.LastTransID)
	require.Equal(t, "AUTH1", order.AuthCode)
	require.True(t, order.Invoiced)
	require.True(t, order.EmailSent)
	require.Equal(t, 1, fx.invoices.created)
	require.Equal(t, 1, fx.emails.confirmations)
	require.Equal(t, 1, fx.emails.invoices)
	require.Equal(t, []uint{7}, fx.quotes.deactivated)
	require.Equal(t, 1, fx.orders.saves)

	// Transition and invoice each leave a history note.
	require.Len(t, order.History, 2)
	require.Contains(t, order.History[0].Comment, "TXN-9")
	require.Contains(t, order.History[1].Comment, "INV-1")
}

func TestEngine_ApplyPending(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)

	n := successNotification(order)
	n.PTxnStatus = gateway.StatusPending

	res, err := fx.engine.Apply(context.Background(), n)
	require.NoError(t, err)

	require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
	require.True(t, res.Pending())
	// Pending leaves the state machine and the idempotency marker alone.
	require.Equal(t, models.OrderStatePendingPayment, order.State)
	require.Empty(t, order.ProcessedTxnID)
	require.Len(t, order.History, 1)
	require.Equal(t, 0, fx.invoices.created)
	require.Equal(t, 1, fx.orders.saves)
}

func TestEngine_PendingThenSuccessSameTxnID(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)

	n := successNotification(order)
	n.PTxnStatus = gateway.StatusPending
	_, err := fx.engine.Apply(context.Background(), n)
	require.NoError(t, err)

	// The terminal notification for the same transaction must still land.
	res, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.NoError(t, err)
	require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
	require.Equal(t, models.OrderStateProcessing, order.State)
}

func TestEngine_ApplyFailureStatuses(t *testing.T) {
	for _, status := range []string{"1", "9", "17", "-1", "-2"} {
		t.Run("status "+status, func(t *testing.T) {
			order := pendingOrder()
			fx := newEngineFixture(t, reconcile.Config{}, order)

			n := successNotification(order)
			n.PTxnStatus = status
			n.PTxnMsg = "Declined by issuer"

			res, err := fx.engine.Apply(context.Background(), n)
			require.NoError(t, err)

			require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
			require.Equal(t, models.OrderStateCanceled, order.State)
			require.Equal(t, "TXN-9", order.ProcessedTxnID)
			for _, item := range order.Items {
				require.True(t, item.Canceled)
			}
			require.Len(t, order.History, 1)
			require.Contains(t, order.History[0].Comment, "Declined by issuer")
			require.Equal(t, 0, fx.invoices.created)
			require.Empty(t, fx.quotes.restored)
		})
	}
}

func TestEngine_UnknownStatusRejected(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)

	n := successNotification(order)
	n.PTxnStatus = "42"

	_, err := fx.engine.Apply(context.Background(), n)
	require.ErrorIs(t, err, reconcile.ErrUnknownStatus)
	// No transition and nothing persisted.
	require.Equal(t, models.OrderStatePendingPayment, order.State)
	require.Equal(t, 0, fx.orders.saves)
}

func TestEngine_MissingFields(t *testing.T) {
	fx := newEngineFixture(t, reconcile.Config{})

	_, err := fx.engine.Apply(context.Background(), &gateway.Notification{PTxnStatus: "0"})
	require.ErrorIs(t, err, reconcile.ErrMissingField)

	_, err = fx.engine.Apply(context.Background(), &gateway.Notification{MerchantPymtID: "100000042"})
	require.ErrorIs(t, err, reconcile.ErrMissingField)
}

func TestEngine_OrderNotFound(t *testing.T) {
	fx := newEngineFixture(t, reconcile.Config{})

	n := &gateway.Notification{MerchantPymtID: "999999999", PTxnStatus: "0"}
	_, err := fx.engine.Apply(context.Background(), n)
	require.ErrorIs(t, err, reconcile.ErrOrderNotFound)
}

func TestEngine_SignatureVerification(t *testing.T) {
	t.Run("valid signature accepted", func(t *testing.T) {
		order := pendingOrder()
		fx := newEngineFixture(t, reconcile.Config{}, order)

		n := successNotification(order)
		n.Sign = fx.signer.SignNotification(n)

		res, err := fx.engine.Apply(context.Background(), n)
		require.NoError(t, err)
		require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
	})

	t.Run("bad signature rejected", func(t *testing.T) {
		order := pendingOrder()
		fx := newEngineFixture(t, reconcile.Config{}, order)

		n := successNotification(order)
		n.Sign = fx.signer.SignNotification(n)
		n.MerchantTxnAmt = "999.00"

		_, err := fx.engine.Apply(context.Background(), n)
		require.ErrorIs(t, err, reconcile.ErrInvalidSignature)
		require.Equal(t, models.OrderStatePendingPayment, order.State)
	})

	t.Run("unsigned accepted by default", func(t *testing.T) {
		order := pendingOrder()
		fx := newEngineFixture(t, reconcile.Config{}, order)

		res, err := fx.engine.Apply(context.Background(), successNotification(order))
		require.NoError(t, err)
		require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
	})

	t.Run("unsigned rejected when required", func(t *testing.T) {
		order := pendingOrder()
		fx := newEngineFixture(t, reconcile.Config{RequireSignature: true}, order)

		_, err := fx.engine.Apply(context.Background(), successNotification(order))
		require.ErrorIs(t, err, reconcile.ErrInvalidSignature)
	})
}

func TestEngine_ReplaySameTxnIDIsDuplicate(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)

	first, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.NoError(t, err)
	require.Equal(t, reconcile.OutcomeApplied, first.Outcome)

	second, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.NoError(t, err)
	require.Equal(t, reconcile.OutcomeDuplicate, second.Outcome)
	require.Equal(t, reconcile.ReasonTxnProcessed, second.Reason)

	// None of the side effects ran twice.
	require.Equal(t, 1, fx.invoices.created)
	require.Equal(t, 1, fx.emails.confirmations)
	require.Equal(t, 1, fx.orders.saves)
	require.Len(t, order.History, 2)
}

func TestEngine_CrossChannelSuccessIsDuplicate(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)

	_, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.NoError(t, err)

	// The poller's view of the same event can carry a different txn id.
	n := successNotification(order)
	n.PTxnID = "TXN-OTHER"

	res, err := fx.engine.Apply(context.Background(), n)
	require.NoError(t, err)
	require.Equal(t, reconcile.OutcomeDuplicate, res.Outcome)
	require.Equal(t, reconcile.ReasonOrderProcessed, res.Reason)
	require.Equal(t, 1, fx.invoices.created)
}

func TestEngine_InvoiceFailureDoesNotBlockTransition(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)
	fx.invoices.err = errors.New("invoice backend down")

	res, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.NoError(t, err)

	require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
	require.Equal(t, models.OrderStateProcessing, order.State)
	require.False(t, order.Invoiced)
	require.Equal(t, 0, fx.emails.invoices)
	// The confirmation email is independent of invoicing.
	require.Equal(t, 1, fx.emails.confirmations)
	require.Equal(t, 1, fx.orders.saves)
}

func TestEngine_EmailFailureDoesNotBlockTransition(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)
	fx.emails.confirmErr = errors.New("smtp down")

	res, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.NoError(t, err)

	require.Equal(t, reconcile.OutcomeApplied, res.Outcome)
	require.False(t, order.EmailSent)
	require.Equal(t, models.OrderStateProcessing, order.State)
}

func TestEngine_SaveFailureIsFatal(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)
	fx.orders.saveFn = func(*models.Order) error { return errors.New("deadlock") }

	_, err := fx.engine.Apply(context.Background(), successNotification(order))
	require.Error(t, err)
	require.Contains(t, err.Error(), "deadlock")
}

func TestEngine_RestoreCartPolicy(t *testing.T) {
	t.Run("restores quote on failure when enabled", func(t *testing.T) {
		order := pendingOrder()
		fx := newEngineFixture(t, reconcile.Config{RestoreCart: true}, order)

		n := successNotification(order)
		n.PTxnStatus = gateway.StatusFailed

		_, err := fx.engine.Apply(context.Background(), n)
		require.NoError(t, err)
		require.Equal(t, []uint{7}, fx.quotes.restored)
	})

	t.Run("keeps quote inactive when disabled", func(t *testing.T) {
		order := pendingOrder()
		fx := newEngineFixture(t, reconcile.Config{}, order)

		n := successNotification(order)
		n.PTxnStatus = gateway.StatusFailed

		_, err := fx.engine.Apply(context.Background(), n)
		require.NoError(t, err)
		require.Empty(t, fx.quotes.restored)
	})

	t.Run("failure replay still restores", func(t *testing.T) {
		order := pendingOrder()
		order.State = models.OrderStateCanceled
		fx := newEngineFixture(t, reconcile.Config{RestoreCart: true}, order)

		n := successNotification(order)
		n.PTxnStatus = gateway.StatusCancelled

		res, err := fx.engine.Apply(context.Background(), n)
		require.NoError(t, err)
		require.Equal(t, reconcile.OutcomeDuplicate, res.Outcome)
		require.Equal(t, reconcile.ReasonOrderCanceled, res.Reason)
		require.Equal(t, []uint{7}, fx.quotes.restored)
	})
}

func TestEngine_ConcurrentChannelsApplyOnce(t *testing.T) {
	order := pendingOrder()
	fx := newEngineFixture(t, reconcile.Config{}, order)

	// The callback and the redirect race with the same transaction id but
	// conflicting statuses. Exactly one of them transitions the order.
	success := successNotification(order)
	failure := successNotification(order)
	failure.PTxnStatus = gateway.StatusCancelled

	results := make(chan reconcile.Outcome, 2)
	var wg sync.WaitGroup
	for _, n := range []*gateway.Notification{success, failure} {
		wg.Add(1)
		go func(n *gateway.Notification) {
			defer wg.Done()
			res, err := fx.engine.Apply(context.Background(), n)
			require.NoError(t, err)
			results <- res.Outcome
		}(n)
	}
	wg.Wait()
	close(results)

	applied, duplicates := 0, 0
	for outcome := range results {
		switch outcome {
		case reconcile.OutcomeApplied:
			applied++
		case reconcile.OutcomeDuplicate:
			duplicates++
		}
	}
	require.Equal(t, 1, applied)
	require.Equal(t, 1, duplicates)
	require.Equal(t, 1, fx.orders.saves)
}
