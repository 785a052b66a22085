package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"paydibs/internal/models"
)

// InvoiceRepository handles invoice database operations.
type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// CreateCaptureInvoice registers a capture-online invoice for a paid order.
// At most one invoice exists per order.
func (r *InvoiceRepository) CreateCaptureInvoice(ctx context.Context, order *models.Order) (*models.Invoice, error) {
	var existing models.Invoice
	err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	invoice := &models.Invoice{
		OrderID:      order.ID,
		IncrementID:  newInvoiceIncrementID(),
		CaptureCase:  models.CaptureOnline,
		GrandTotal:   order.GrandTotal,
		CurrencyCode: order.CurrencyCode,
		CreatedAt:    time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return nil, fmt.Errorf("create invoice for order %s: %w", order.IncrementID, err)
	}
	return invoice, nil
}

// FindByOrderID returns the invoice for an order, if any.
func (r *InvoiceRepository) FindByOrderID(ctx context.Context, orderID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func newInvoiceIncrementID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return fmt.Sprintf("INV-%d-%s", time.Now().Unix(), suffix)
}
