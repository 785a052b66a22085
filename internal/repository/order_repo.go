package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"paydibs/internal/models"
	"paydibs/internal/reconcile"
)

// OrderRepository handles sales order database operations.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByIncrementID returns an order by its merchant-facing increment id,
// with its line items loaded.
func (r *OrderRepository) FindByIncrementID(ctx context.Context, incrementID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("increment_id = ?", incrementID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, reconcile.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Save persists the order together with its items and any appended
// status-history rows in one transaction.
func (r *OrderRepository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items", "History").Save(order).Error; err != nil {
			return err
		}
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
			if err := tx.Save(&order.Items[i]).Error; err != nil {
				return err
			}
		}
		for i := range order.History {
			if order.History[i].ID != 0 {
				continue
			}
			order.History[i].OrderID = order.ID
			if err := tx.Create(&order.History[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindPendingInWindow returns orders of the given payment method still
// awaiting payment whose creation time falls inside [from, to].
func (r *OrderRepository) FindPendingInWindow(ctx context.Context, method string, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("state = ? AND payment_method = ? AND created_at BETWEEN ? AND ?",
			models.OrderStatePendingPayment, method, from, to).
		Order("created_at ASC").
		Find(&orders).Error
	return orders, err
}

// Create inserts a new order. Orders are placed outside this service; this
// exists for seeding and tests.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}
