package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SQLite keeps stores, customers, addresses, orders and generic attributes.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps db and creates the schema when missing.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to initialize store schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS stores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		customer_guid TEXT NOT NULL UNIQUE,
		username TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS addresses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone_number TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_guid TEXT NOT NULL UNIQUE,
		custom_order_number TEXT NOT NULL DEFAULT '',
		store_id INTEGER NOT NULL,
		customer_id INTEGER NOT NULL,
		shipping_address_id INTEGER NOT NULL DEFAULT 0,
		pickup_in_store INTEGER NOT NULL DEFAULT 0,
		order_subtotal TEXT NOT NULL DEFAULT '0',
		order_total TEXT NOT NULL DEFAULT '0',
		refunded_amount TEXT NOT NULL DEFAULT '0',
		capture_transaction_id TEXT NOT NULL DEFAULT '',
		payment_status TEXT NOT NULL,
		order_status TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		created_on_utc DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_capture_tx ON orders(capture_transaction_id);

	CREATE TABLE IF NOT EXISTS generic_attributes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id INTEGER NOT NULL,
		key_group TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		store_id INTEGER NOT NULL DEFAULT 0,
		UNIQUE(entity_id, key_group, key, store_id)
	);
	CREATE INDEX IF NOT EXISTS idx_generic_attributes_lookup ON generic_attributes(key_group, key, value);
	`)
	return err
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateStore inserts st and sets its ID.
func (s *SQLite) CreateStore(ctx context.Context, st *Store) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO stores (name, url) VALUES (?, ?)`, st.Name, st.URL)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	st.ID, err = res.LastInsertId()
	return err
}

// ListStores returns all stores ordered by id.
func (s *SQLite) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, url FROM stores ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer rows.Close()

	var stores []Store
	for rows.Next() {
		var st Store
		if err := rows.Scan(&st.ID, &st.Name, &st.URL); err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, st)
	}
	return stores, rows.Err()
}

// CreateCustomer inserts c, generating a GUID when missing.
func (s *SQLite) CreateCustomer(ctx context.Context, c *Customer) error {
	if c.CustomerGUID == uuid.Nil {
		c.CustomerGUID = uuid.New()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO customers (customer_guid, username, email, active, deleted) VALUES (?, ?, ?, ?, ?)`,
		c.CustomerGUID.String(), c.Username, c.Email, c.Active, c.Deleted)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

const customerColumns = `id, customer_guid, username, email, active, deleted`

func scanCustomer(row *sql.Row) (*Customer, error) {
	var c Customer
	var guid string
	if err := row.Scan(&c.ID, &guid, &c.Username, &c.Email, &c.Active, &c.Deleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan customer: %w", err)
	}
	parsed, err := uuid.Parse(guid)
	if err != nil {
		return nil, fmt.Errorf("customer %d has invalid guid: %w", c.ID, err)
	}
	c.CustomerGUID = parsed
	return &c, nil
}

// GetCustomerByID returns the customer or ErrNotFound.
func (s *SQLite) GetCustomerByID(ctx context.Context, id int64) (*Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
}

// GetCustomerByGUID returns the customer or ErrNotFound.
func (s *SQLite) GetCustomerByGUID(ctx context.Context, guid uuid.UUID) (*Customer, error) {
	return scanCustomer(s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE customer_guid = ?`, guid.String()))
}

// CreateAddress inserts a and sets its ID.
func (s *SQLite) CreateAddress(ctx context.Context, a *Address) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO addresses (first_name, last_name, email, phone_number) VALUES (?, ?, ?, ?)`,
		a.FirstName, a.LastName, a.Email, a.PhoneNumber)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	a.ID, err = res.LastInsertId()
	return err
}

// GetAddressByID returns the address or ErrNotFound.
func (s *SQLite) GetAddressByID(ctx context.Context, id int64) (*Address, error) {
	var a Address
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, phone_number FROM addresses WHERE id = ?`, id).
		Scan(&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PhoneNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load address %d: %w", id, err)
	}
	return &a, nil
}

// CreateOrder inserts o, filling GUID, status and creation time defaults.
func (s *SQLite) CreateOrder(ctx context.Context, o *Order) error {
	if o.OrderGUID == uuid.Nil {
		o.OrderGUID = uuid.New()
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentPending
	}
	if o.OrderStatus == "" {
		o.OrderStatus = OrderPending
	}
	if o.CreatedOnUTC.IsZero() {
		o.CreatedOnUTC = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (order_guid, custom_order_number, store_id, customer_id, shipping_address_id,
			pickup_in_store, order_subtotal, order_total, refunded_amount, capture_transaction_id,
			payment_status, order_status, deleted, created_on_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderGUID.String(), o.CustomOrderNumber, o.StoreID, o.CustomerID, o.ShippingAddressID,
		o.PickupInStore, o.OrderSubtotal.String(), o.OrderTotal.String(), o.RefundedAmount.String(),
		o.CaptureTransactionID, string(o.PaymentStatus), string(o.OrderStatus), o.Deleted,
		o.CreatedOnUTC.UTC())
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	o.ID, err = res.LastInsertId()
	if err != nil {
		return err
	}
	if o.CustomOrderNumber == "" {
		o.CustomOrderNumber = fmt.Sprintf("%d", o.ID)
		_, err = s.db.ExecContext(ctx, `UPDATE orders SET custom_order_number = ? WHERE id = ?`, o.CustomOrderNumber, o.ID)
	}
	return err
}

const orderColumns = `id, order_guid, custom_order_number, store_id, customer_id, shipping_address_id,
	pickup_in_store, order_subtotal, order_total, refunded_amount, capture_transaction_id,
	payment_status, order_status, deleted, created_on_utc`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var (
		o                          Order
		guid                       string
		subtotal, total, refunded  string
		paymentStatus, orderStatus string
	)
	err := row.Scan(&o.ID, &guid, &o.CustomOrderNumber, &o.StoreID, &o.CustomerID, &o.ShippingAddressID,
		&o.PickupInStore, &subtotal, &total, &refunded, &o.CaptureTransactionID,
		&paymentStatus, &orderStatus, &o.Deleted, &o.CreatedOnUTC)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}
	if o.OrderGUID, err = uuid.Parse(guid); err != nil {
		return nil, fmt.Errorf("order %d has invalid guid: %w", o.ID, err)
	}
	for _, field := range []struct {
		raw string
		dst *decimal.Decimal
	}{{subtotal, &o.OrderSubtotal}, {total, &o.OrderTotal}, {refunded, &o.RefundedAmount}} {
		if *field.dst, err = decimal.NewFromString(field.raw); err != nil {
			return nil, fmt.Errorf("order %d has invalid amount %q: %w", o.ID, field.raw, err)
		}
	}
	o.PaymentStatus = PaymentStatus(paymentStatus)
	o.OrderStatus = OrderStatus(orderStatus)
	o.CreatedOnUTC = o.CreatedOnUTC.UTC()
	return &o, nil
}

// GetOrderByID returns the order, deleted or not, or ErrNotFound.
func (s *SQLite) GetOrderByID(ctx context.Context, id int64) (*Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
}

// FindOrderByCaptureTransactionID returns the newest order whose capture transaction id equals id.
func (s *SQLite) FindOrderByCaptureTransactionID(ctx context.Context, id string) (*Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	return scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE capture_transaction_id = ? ORDER BY id DESC LIMIT 1`, id))
}

// MarkOrderAsPaid records a paid payment with its capture transaction id.
func (s *SQLite) MarkOrderAsPaid(ctx context.Context, orderID int64, captureTransactionID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_status = ?, capture_transaction_id = ?,
			order_status = CASE WHEN order_status = ? THEN ? ELSE order_status END
		WHERE id = ?`,
		string(PaymentPaid), captureTransactionID, string(OrderPending), string(OrderProcessing), orderID)
	if err != nil {
		return fmt.Errorf("failed to mark order %d as paid: %w", orderID, err)
	}
	return expectOne(res, orderID)
}

// CancelOrder moves the order to the cancelled state.
func (s *SQLite) CancelOrder(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET order_status = ? WHERE id = ?`, string(OrderCancelled), orderID)
	if err != nil {
		return fmt.Errorf("failed to cancel order %d: %w", orderID, err)
	}
	return expectOne(res, orderID)
}

// ApplyRefund adds amount to the refunded total and sets the payment status.
// The read and the update share one transaction; the connection opens
// transactions with BEGIN IMMEDIATE so concurrent refunds serialize on the
// write lock instead of overwriting each other's total.
func (s *SQLite) ApplyRefund(ctx context.Context, orderID int64, amount decimal.Decimal, status PaymentStatus) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin refund of order %d: %w", orderID, err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID))
	if err != nil {
		return err
	}
	refunded := order.RefundedAmount.Add(amount)
	res, err := tx.ExecContext(ctx, `UPDATE orders SET refunded_amount = ?, payment_status = ? WHERE id = ?`,
		refunded.String(), string(status), orderID)
	if err != nil {
		return fmt.Errorf("failed to apply refund to order %d: %w", orderID, err)
	}
	if err := expectOne(res, orderID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund of order %d: %w", orderID, err)
	}
	return nil
}

// DeleteOrder soft deletes the order.
func (s *SQLite) DeleteOrder(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET deleted = 1 WHERE id = ?`, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}
	return expectOne(res, orderID)
}

func expectOne(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	return nil
}

// SaveAttribute stores a generic attribute. An empty value deletes it.
func (s *SQLite) SaveAttribute(ctx context.Context, keyGroup string, entityID int64, key, value string, storeID int64) error {
	if value == "" {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM generic_attributes WHERE entity_id = ? AND key_group = ? AND key = ? AND store_id = ?`,
			entityID, keyGroup, key, storeID)
		if err != nil {
			return fmt.Errorf("failed to delete attribute %s.%s: %w", keyGroup, key, err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generic_attributes (entity_id, key_group, key, value, store_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_id, key_group, key, store_id) DO UPDATE SET value = excluded.value`,
		entityID, keyGroup, key, value, storeID)
	if err != nil {
		return fmt.Errorf("failed to save attribute %s.%s: %w", keyGroup, key, err)
	}
	return nil
}

// GetAttribute returns a generic attribute value, or "" when unset.
func (s *SQLite) GetAttribute(ctx context.Context, keyGroup string, entityID int64, key string, storeID int64) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM generic_attributes WHERE entity_id = ? AND key_group = ? AND key = ? AND store_id = ?`,
		entityID, keyGroup, key, storeID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load attribute %s.%s: %w", keyGroup, key, err)
	}
	return value, nil
}

// FindEntityIDsByAttribute returns the ids of entities holding value under keyGroup and key.
func (s *SQLite) FindEntityIDsByAttribute(ctx context.Context, keyGroup, key, value string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id FROM generic_attributes WHERE key_group = ? AND key = ? AND value = ? ORDER BY entity_id DESC`,
		keyGroup, key, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
