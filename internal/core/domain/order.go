package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is written to the durable store once, never cached.
type Order struct {
	ID          int64
	OrderNo     string
	UserID      int64
	MerchantID  int64
	SKU         string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
	TotalAmount decimal.Decimal
	Currency    string
	Status      OrderStatus
	Version     int64 // optimistic locking
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOrder(userID, merchantID int64, sku, productName string, unitPrice decimal.Decimal, quantity int, currency string) *Order {
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now()
	return &Order{
		OrderNo:     generateOrderNo(),
		UserID:      userID,
		MerchantID:  merchantID,
		SKU:         sku,
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
		TotalAmount: unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Currency:    currency,
		Status:      OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkAsPaid is only legal from PENDING.
func (o *Order) MarkAsPaid() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: cannot pay order in status %s", ErrInvalidOrderState, o.Status)
	}
	o.Status = OrderStatusPaid
	o.UpdatedAt = time.Now()
	return nil
}

// MarkAsFailed is only legal from PENDING.
func (o *Order) MarkAsFailed() error {
	if o.Status != OrderStatusPending {
		return fmt.Errorf("%w: cannot fail order in status %s", ErrInvalidOrderState, o.Status)
	}
	o.Status = OrderStatusFailed
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel is legal from any status except PAID, which is terminal.
func (o *Order) Cancel() error {
	if o.Status == OrderStatusPaid {
		return fmt.Errorf("%w: paid order cannot be cancelled", ErrInvalidOrderState)
	}
	o.Status = OrderStatusCancelled
	o.UpdatedAt = time.Now()
	return nil
}

// Collisions are accepted as negligible.
func generateOrderNo() string {
	return fmt.Sprintf("ORD%d%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
