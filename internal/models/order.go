package models

import (
	"fmt"
	"strconv"
	"time"
)

// Code identifying this payment method on an order.
const PaymentMethodPaydibs = "paydibs_payment_gateway"

// Order payment states relevant to this flow. Anything else is treated as
// opaque and left alone.
const (
	OrderStatePendingPayment = "pending_payment"
	OrderStateProcessing     = "processing"
	OrderStateCanceled       = "canceled"
)

// Order maps to the `sales_order` table.
type Order struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	IncrementID   string    `gorm:"column:increment_id;size:50;uniqueIndex" json:"increment_id"`
	State         string    `gorm:"column:state;size:32;index" json:"state"`
	Status        string    `gorm:"column:status;size:32" json:"status"`
	QuoteID       uint      `gorm:"column:quote_id" json:"quote_id"`
	GrandTotal    string    `gorm:"column:grand_total;size:20" json:"grand_total"`
	CurrencyCode  string    `gorm:"column:order_currency_code;size:3" json:"order_currency_code"`
	CustomerName  string    `gorm:"column:customer_name;size:255" json:"customer_name"`
	CustomerEmail string    `gorm:"column:customer_email;size:255" json:"customer_email"`
	CustomerPhone string    `gorm:"column:customer_phone;size:32" json:"customer_phone"`
	PaymentMethod string    `gorm:"column:payment_method;size:64;index" json:"payment_method"`
	EmailSent     bool      `gorm:"column:email_sent" json:"email_sent"`
	Invoiced      bool      `gorm:"column:invoiced" json:"invoiced"`
	CreatedAt     time.Time `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Gateway payment record. ProcessedTxnID is the idempotency marker
	// shared by all three reconciliation channels.
	LastTransID    string `gorm:"column:last_trans_id;size:64" json:"last_trans_id"`
	ProcessedTxnID string `gorm:"column:processed_txn_id;size:64" json:"processed_txn_id"`
	TxnAmount      string `gorm:"column:txn_amount;size:20" json:"txn_amount"`
	TxnCurrency    string `gorm:"column:txn_currency;size:3" json:"txn_currency"`
	AuthCode       string `gorm:"column:auth_code;size:64" json:"auth_code"`
	TxnMessage     string `gorm:"column:txn_message;size:500" json:"txn_message"`

	Items   []OrderItem          `gorm:"foreignKey:OrderID" json:"items"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"history"`
}

func (Order) TableName() string {
	return "sales_order"
}

// AmountString renders the grand total as the two-decimal fixed string the
// gateway expects in requests.
func (o *Order) AmountString() string {
	v, err := strconv.ParseFloat(o.GrandTotal, 64)
	if err != nil {
		return o.GrandTotal
	}
	return fmt.Sprintf("%.2f", v)
}

// AddHistory appends a status-history note to be persisted with the order.
func (o *Order) AddHistory(state, comment string) {
	o.History = append(o.History, OrderStatusHistory{
		OrderID:   o.ID,
		State:     state,
		Comment:   comment,
		CreatedAt: time.Now(),
	})
}

// OrderItem maps to the `sales_order_item` table.
type OrderItem struct {
	ID         uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID    uint   `gorm:"column:order_id;index" json:"order_id"`
	Sku        string `gorm:"column:sku;size:64" json:"sku"`
	Name       string `gorm:"column:name;size:255" json:"name"`
	QtyOrdered int    `gorm:"column:qty_ordered" json:"qty_ordered"`
	Canceled   bool   `gorm:"column:canceled" json:"canceled"`
}

func (OrderItem) TableName() string {
	return "sales_order_item"
}

// OrderStatusHistory maps to the `sales_order_status_history` table.
type OrderStatusHistory struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OrderID   uint      `gorm:"column:order_id;index" json:"order_id"`
	State     string    `gorm:"column:state;size:32" json:"state"`
	Comment   string    `gorm:"column:comment;size:1000" json:"comment"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "sales_order_status_history"
}
