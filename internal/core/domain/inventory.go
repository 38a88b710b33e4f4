package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductInventory is the durable stock record for one (merchant, SKU) pair.
type ProductInventory struct {
	ID          int64
	MerchantID  int64
	SKU         string
	ProductName string
	Price       decimal.Decimal
	Quantity    int
	Currency    string
	Version     int64 // optimistic locking
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewProductInventory(merchantID int64, sku, productName string, price decimal.Decimal, quantity int, currency string) *ProductInventory {
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now()
	return &ProductInventory{
		MerchantID:  merchantID,
		SKU:         sku,
		ProductName: productName,
		Price:       price,
		Quantity:    quantity,
		Currency:    currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (p *ProductInventory) TotalPrice(quantity int) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(quantity)))
}

// DecreaseQuantity fails rather than letting stock go negative.
func (p *ProductInventory) DecreaseQuantity(quantity int) error {
	if p.Quantity < quantity {
		return ErrInsufficientInventory
	}
	p.Quantity -= quantity
	p.UpdatedAt = time.Now()
	return nil
}

func (p *ProductInventory) IncreaseQuantity(quantity int) {
	p.Quantity += quantity
	p.UpdatedAt = time.Now()
}
