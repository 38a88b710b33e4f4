package domain

import "errors"

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrProductAlreadyExists  = errors.New("product already exists")
	ErrInventoryNotFound     = errors.New("inventory not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrAccountNotFound       = errors.New("account not found")
	ErrMerchantNotFound      = errors.New("merchant account not found")
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidOrderState     = errors.New("invalid order state transition")
)
