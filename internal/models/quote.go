package models

import "time"

// Quote maps to the `quote` table. Only the activation state and the
// order-number reservation matter to the reconciliation flow.
type Quote struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	IsActive        bool      `gorm:"column:is_active" json:"is_active"`
	ReservedOrderID string    `gorm:"column:reserved_order_id;size:50" json:"reserved_order_id"`
	UpdatedAt       time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Quote) TableName() string {
	return "quote"
}
