package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/mall-ledger/internal/core/domain"
)

var ErrOptimisticLock = errors.New("optimistic lock conflict")

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) GetInventory(ctx context.Context, merchantID int64, sku string) (*domain.ProductInventory, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, sku, product_name, price, quantity, currency, version, created_at, updated_at
		FROM product_inventory WHERE merchant_id = ? AND sku = ?`, merchantID, sku)

	inv, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return inv, nil
}

func (m *MySQLAdapter) ListInventories(ctx context.Context) ([]domain.ProductInventory, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, merchant_id, sku, product_name, price, quantity, currency, version, created_at, updated_at
		FROM product_inventory`)
	if err != nil {
		return nil, fmt.Errorf("list inventories: %w", err)
	}
	defer rows.Close()

	var out []domain.ProductInventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan inventory: %w", err)
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) InsertInventory(ctx context.Context, inv *domain.ProductInventory) error {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO product_inventory (merchant_id, sku, product_name, price, quantity, currency, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.MerchantID, inv.SKU, inv.ProductName, inv.Price.String(), inv.Quantity,
		inv.Currency, inv.Version, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert inventory: %w", err)
	}
	inv.ID, _ = result.LastInsertId()
	return nil
}

func (m *MySQLAdapter) UpdateInventory(ctx context.Context, inv domain.ProductInventory) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE product_inventory
		SET quantity = ?, price = ?, version = version + 1, updated_at = NOW()
		WHERE merchant_id = ? AND sku = ? AND version = ?`,
		inv.Quantity, inv.Price.String(), inv.MerchantID, inv.SKU, inv.Version,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) DecreaseInventoryQuantity(ctx context.Context, merchantID int64, sku string, quantity int) (*domain.ProductInventory, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, merchant_id, sku, product_name, price, quantity, currency, version, created_at, updated_at
		FROM product_inventory WHERE merchant_id = ? AND sku = ? FOR UPDATE`, merchantID, sku)

	inv, err := scanInventory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock inventory: %w", err)
	}

	if err := inv.DecreaseQuantity(quantity); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE product_inventory
		SET quantity = ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`, inv.Quantity, inv.ID,
	); err != nil {
		return nil, fmt.Errorf("update locked inventory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit inventory decrease: %w", err)
	}
	inv.Version++
	return inv, nil
}

func (m *MySQLAdapter) GetUserAccount(ctx context.Context, userID int64) (*domain.UserAccount, error) {
	var (
		acct    domain.UserAccount
		balance string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, user_id, balance, currency, version, created_at, updated_at
		FROM user_account WHERE user_id = ?`, userID,
	).Scan(&acct.ID, &acct.UserID, &balance, &acct.Currency, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user account: %w", err)
	}

	if acct.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse user balance: %w", err)
	}
	return &acct, nil
}

func (m *MySQLAdapter) ListUserAccounts(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, balance, currency, version, created_at, updated_at
		FROM user_account`)
	if err != nil {
		return nil, fmt.Errorf("list user accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.UserAccount
	for rows.Next() {
		var (
			acct    domain.UserAccount
			balance string
		)
		if err := rows.Scan(&acct.ID, &acct.UserID, &balance, &acct.Currency, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user account: %w", err)
		}
		if acct.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse user balance: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) InsertUserAccount(ctx context.Context, acct *domain.UserAccount) error {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO user_account (user_id, balance, currency, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		acct.UserID, acct.Balance.String(), acct.Currency, acct.Version, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user account: %w", err)
	}
	acct.ID, _ = result.LastInsertId()
	return nil
}

func (m *MySQLAdapter) UpdateUserAccount(ctx context.Context, acct domain.UserAccount) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE user_account
		SET balance = ?, version = version + 1, updated_at = NOW()
		WHERE user_id = ? AND version = ?`,
		acct.Balance.String(), acct.UserID, acct.Version,
	)
	if err != nil {
		return fmt.Errorf("update user account: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) GetMerchantAccount(ctx context.Context, merchantID int64) (*domain.MerchantAccount, error) {
	var (
		acct    domain.MerchantAccount
		balance string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, merchant_id, balance, currency, version, created_at, updated_at
		FROM merchant_account WHERE merchant_id = ?`, merchantID,
	).Scan(&acct.ID, &acct.MerchantID, &balance, &acct.Currency, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query merchant account: %w", err)
	}

	if acct.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("parse merchant balance: %w", err)
	}
	return &acct, nil
}

func (m *MySQLAdapter) ListMerchantAccounts(ctx context.Context) ([]domain.MerchantAccount, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, merchant_id, balance, currency, version, created_at, updated_at
		FROM merchant_account`)
	if err != nil {
		return nil, fmt.Errorf("list merchant accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.MerchantAccount
	for rows.Next() {
		var (
			acct    domain.MerchantAccount
			balance string
		)
		if err := rows.Scan(&acct.ID, &acct.MerchantID, &balance, &acct.Currency, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan merchant account: %w", err)
		}
		if acct.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("parse merchant balance: %w", err)
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func (m *MySQLAdapter) InsertMerchantAccount(ctx context.Context, acct *domain.MerchantAccount) error {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO merchant_account (merchant_id, balance, currency, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		acct.MerchantID, acct.Balance.String(), acct.Currency, acct.Version, acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert merchant account: %w", err)
	}
	acct.ID, _ = result.LastInsertId()
	return nil
}

func (m *MySQLAdapter) UpdateMerchantAccount(ctx context.Context, acct domain.MerchantAccount) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE merchant_account
		SET balance = ?, version = version + 1, updated_at = NOW()
		WHERE merchant_id = ? AND version = ?`,
		acct.Balance.String(), acct.MerchantID, acct.Version,
	)
	if err != nil {
		return fmt.Errorf("update merchant account: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}
	return nil
}

func (m *MySQLAdapter) InsertOrder(ctx context.Context, order *domain.Order) error {
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO orders (order_no, user_id, merchant_id, sku, product_name, unit_price, quantity, total_amount, currency, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.OrderNo, order.UserID, order.MerchantID, order.SKU, order.ProductName,
		order.UnitPrice.String(), order.Quantity, order.TotalAmount.String(),
		order.Currency, order.Status, order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	order.ID, _ = result.LastInsertId()
	return nil
}

func (m *MySQLAdapter) GetOrderByOrderNo(ctx context.Context, orderNo string) (*domain.Order, error) {
	var (
		order       domain.Order
		unitPrice   string
		totalAmount string
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, order_no, user_id, merchant_id, sku, product_name, unit_price, quantity, total_amount, currency, status, version, created_at, updated_at
		FROM orders WHERE order_no = ?`, orderNo,
	).Scan(&order.ID, &order.OrderNo, &order.UserID, &order.MerchantID, &order.SKU,
		&order.ProductName, &unitPrice, &order.Quantity, &totalAmount,
		&order.Currency, &order.Status, &order.Version, &order.CreatedAt, &order.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	if order.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("parse unit price: %w", err)
	}
	if order.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}
	return &order, nil
}

func (m *MySQLAdapter) SumPaidOrderAmount(ctx context.Context, merchantID int64, from, to time.Time) (decimal.Decimal, error) {
	var total string
	err := m.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE merchant_id = ? AND status = ? AND created_at BETWEEN ? AND ?`,
		merchantID, domain.OrderStatusPaid, from, to,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum paid orders: %w", err)
	}
	return decimal.NewFromString(total)
}

func (m *MySQLAdapter) DistinctMerchantIDs(ctx context.Context) ([]int64, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT DISTINCT merchant_id FROM product_inventory`)
	if err != nil {
		return nil, fmt.Errorf("distinct merchants: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan merchant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInventory(row rowScanner) (*domain.ProductInventory, error) {
	var (
		inv   domain.ProductInventory
		price string
	)
	if err := row.Scan(&inv.ID, &inv.MerchantID, &inv.SKU, &inv.ProductName, &price,
		&inv.Quantity, &inv.Currency, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}

	var err error
	if inv.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	return &inv, nil
}
