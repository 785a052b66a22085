package cron

import (
	"context"
	"time"

	"go.uber.org/zap"

	"paydibs/internal/gateway"
	"paydibs/internal/models"
	"paydibs/internal/reconcile"
)

// Poller actively queries the gateway for orders stuck in pending payment.
// The redirect or the callback normally settle an order; the poller is the
// safety net when neither arrives.
type Poller struct {
	orders reconcile.OrderStore
	engine *reconcile.Engine
	client *gateway.Client
	window time.Duration
	logger *zap.Logger
}

func NewPoller(
	orders reconcile.OrderStore,
	engine *reconcile.Engine,
	client *gateway.Client,
	window time.Duration,
	logger *zap.Logger,
) *Poller {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &Poller{
		orders: orders,
		engine: engine,
		client: client,
		window: window,
		logger: logger,
	}
}

// Run queries every pending order created inside the trailing window ending
// at now. A transport error or bad response for one order never aborts the
// rest of the batch. It returns the number of orders whose status was
// settled by this run.
func (p *Poller) Run(ctx context.Context, now time.Time) int {
	from := now.Add(-p.window)

	orders, err := p.orders.FindPendingInWindow(ctx, models.PaymentMethodPaydibs, from, now)
	if err != nil {
		p.logger.Error("Error listing pending orders", zap.Error(err))
		return 0
	}

	p.logger.Info("Querying pending orders",
		zap.Int("count", len(orders)),
		zap.Time("from", from),
		zap.Time("to", now))

	settled := 0
	for i := range orders {
		if p.processOrder(ctx, &orders[i]) {
			settled++
		}
	}

	p.logger.Info("Finished querying pending orders", zap.Int("settled", settled))
	return settled
}

// processOrder is the poll-response entry point: it fetches the gateway's
// view of one order and feeds it through the shared transition engine.
func (p *Poller) processOrder(ctx context.Context, order *models.Order) bool {
	n, err := p.client.QueryStatus(ctx, order.IncrementID, order.AmountString(), order.CurrencyCode)
	if err != nil {
		p.logger.Warn("Query failed for order",
			zap.String("order", order.IncrementID), zap.Error(err))
		return false
	}
	if n.PTxnStatus == "" {
		p.logger.Warn("Query response missing PTxnStatus",
			zap.String("order", order.IncrementID))
		return false
	}

	res, err := p.engine.Apply(ctx, n)
	if err != nil {
		p.logger.Warn("Error applying query response",
			zap.String("order", order.IncrementID), zap.Error(err))
		return false
	}

	// A still-pending order is handled but not settled.
	return res.Outcome == reconcile.OutcomeDuplicate || !res.Pending()
}
