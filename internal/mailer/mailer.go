// Package mailer is the integration point for the storefront's
// transactional mail service. Order and invoice confirmations are owned by
// the storefront; the default sender only records the intent so the engine
// can maintain the email-sent flags.
package mailer

import (
	"context"

	"go.uber.org/zap"

	"paydibs/internal/models"
)

type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	s.logger.Info("Order confirmation queued",
		zap.String("order", order.IncrementID),
		zap.String("email", order.CustomerEmail))
	return nil
}

func (s *LogSender) SendInvoice(_ context.Context, order *models.Order, invoice *models.Invoice) error {
	s.logger.Info("Invoice email queued",
		zap.String("order", order.IncrementID),
		zap.String("invoice", invoice.IncrementID),
		zap.String("email", order.CustomerEmail))
	return nil
}
