package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "CNY"

// UserAccount holds a buyer's prepaid balance.
type UserAccount struct {
	ID        int64
	UserID    int64
	Balance   decimal.Decimal
	Currency  string
	Version   int64 // optimistic locking
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewUserAccount(userID int64, currency string) *UserAccount {
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now()
	return &UserAccount{
		UserID:    userID,
		Balance:   decimal.Zero,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *UserAccount) Deposit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
	a.UpdatedAt = time.Now()
}

// MerchantAccount accumulates a seller's settled funds. Created lazily with a
// zero balance the first time the merchant is referenced as a transfer
// counterpart.
type MerchantAccount struct {
	ID         int64
	MerchantID int64
	Balance    decimal.Decimal
	Currency   string
	Version    int64 // optimistic locking
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func NewMerchantAccount(merchantID int64, currency string) *MerchantAccount {
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now()
	return &MerchantAccount{
		MerchantID: merchantID,
		Balance:    decimal.Zero,
		Currency:   currency,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
