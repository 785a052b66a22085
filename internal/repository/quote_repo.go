package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"paydibs/internal/models"
)

// QuoteRepository handles quote (cart) database operations.
type QuoteRepository struct {
	db *gorm.DB
}

func NewQuoteRepository(db *gorm.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Deactivate clears the cart after a successful payment.
func (r *QuoteRepository) Deactivate(ctx context.Context, quoteID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Quote{}).
		Where("id = ?", quoteID).
		Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("quote %d not found", quoteID)
	}
	return nil
}

// Restore reactivates the cart and releases its order-number reservation so
// the customer can reorder after a failed payment.
func (r *QuoteRepository) Restore(ctx context.Context, quoteID uint) error {
	res := r.db.WithContext(ctx).Model(&models.Quote{}).
		Where("id = ?", quoteID).
		Updates(map[string]interface{}{
			"is_active":         true,
			"reserved_order_id": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("quote %d not found", quoteID)
	}
	return nil
}
