package models

import "time"

// Invoice capture modes.
const CaptureOnline = "online"

// Invoice maps to the `sales_invoice` table.
type Invoice struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID      uint      `gorm:"column:order_id;index" json:"order_id"`
	IncrementID  string    `gorm:"column:increment_id;size:50;uniqueIndex" json:"increment_id"`
	CaptureCase  string    `gorm:"column:capture_case;size:20" json:"capture_case"`
	GrandTotal   string    `gorm:"column:grand_total;size:20" json:"grand_total"`
	CurrencyCode string    `gorm:"column:order_currency_code;size:3" json:"order_currency_code"`
	EmailSent    bool      `gorm:"column:email_sent" json:"email_sent"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Invoice) TableName() string {
	return "sales_invoice"
}
