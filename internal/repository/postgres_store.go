package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/distributed-ecommerce-saga/storefront-functions/internal/types"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	category_id TEXT NOT NULL DEFAULT '',
	stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
	price NUMERIC(12, 2) NOT NULL DEFAULT 0,
	compare_at_price NUMERIC(12, 2),
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	updated_by TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS stock_movements (
	id UUID PRIMARY KEY,
	product_id UUID NOT NULL,
	previous_stock INTEGER NOT NULL,
	new_stock INTEGER NOT NULL,
	quantity INTEGER NOT NULL,
	operation TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	performed_by TEXT NOT NULL,
	order_id UUID,
	idempotency_key TEXT UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS stock_movements_product_idx ON stock_movements (product_id, created_at DESC);

CREATE TABLE IF NOT EXISTS stock_alerts (
	product_id UUID PRIMARY KEY,
	threshold INTEGER NOT NULL CHECK (threshold >= 0),
	is_active BOOLEAN NOT NULL,
	updated_by TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS inventory_alerts (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	product_id UUID NOT NULL,
	product_name TEXT NOT NULL,
	current_stock INTEGER NOT NULL,
	threshold INTEGER NOT NULL,
	priority TEXT NOT NULL,
	read BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS restock_requests (
	id UUID PRIMARY KEY,
	product_id UUID NOT NULL,
	product_name TEXT NOT NULL,
	current_stock INTEGER NOT NULL,
	requested_quantity INTEGER NOT NULL CHECK (requested_quantity > 0),
	priority TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '',
	requested_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	recipient TEXT NOT NULL,
	subject TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL,
	template_id TEXT NOT NULL DEFAULT '',
	data JSONB,
	error TEXT NOT NULL DEFAULT '',
	provider_ref TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	sent_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS notifications_created_idx ON notifications (created_by, created_at DESC);
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates missing tables and indexes.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("schema migration error: %w", err)
	}
	return nil
}

const productColumns = `id, name, category_id, stock, price, compare_at_price, is_active, updated_by, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*types.Product, error) {
	product := &types.Product{}
	var compareAt decimal.NullDecimal
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.CategoryID,
		&product.Stock,
		&product.Price,
		&compareAt,
		&product.IsActive,
		&product.UpdatedBy,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if compareAt.Valid {
		product.CompareAtPrice = &compareAt.Decimal
	}
	return product, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id uuid.UUID) (*types.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("product receive error: %w", err)
	}
	return product, nil
}

func (s *PostgresStore) ListActiveProducts(ctx context.Context) ([]*types.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("products retrieval error: %w", err)
	}
	defer rows.Close()

	var products []*types.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("product scan error: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (s *PostgresStore) GetStockAlert(ctx context.Context, productID uuid.UUID) (*types.StockAlert, error) {
	query := `
		SELECT product_id, threshold, is_active, updated_by, updated_at
		FROM stock_alerts
		WHERE product_id = $1
	`

	alert := &types.StockAlert{}
	err := s.db.QueryRowContext(ctx, query, productID).Scan(
		&alert.ProductID,
		&alert.Threshold,
		&alert.IsActive,
		&alert.UpdatedBy,
		&alert.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("stock alert receive error: %w", err)
	}
	return alert, nil
}

func (s *PostgresStore) ListActiveStockAlerts(ctx context.Context) ([]*types.StockAlert, error) {
	query := `
		SELECT product_id, threshold, is_active, updated_by, updated_at
		FROM stock_alerts
		WHERE is_active = TRUE
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("stock alerts retrieval error: %w", err)
	}
	defer rows.Close()

	var alerts []*types.StockAlert
	for rows.Next() {
		alert := &types.StockAlert{}
		if err := rows.Scan(&alert.ProductID, &alert.Threshold, &alert.IsActive, &alert.UpdatedBy, &alert.UpdatedAt); err != nil {
			return nil, fmt.Errorf("stock alert scan error: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func (s *PostgresStore) MovementExists(ctx context.Context, idempotencyKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stock_movements WHERE idempotency_key = $1)`,
		idempotencyKey,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("movement lookup error: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, query NotificationQuery) ([]*types.Notification, error) {
	var (
		conditions []string
		args       []interface{}
	)
	addCondition := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if query.Type != "" {
		addCondition("type", string(query.Type))
	}
	if query.Status != "" {
		addCondition("status", string(query.Status))
	}
	if query.CreatedBy != "" {
		addCondition("created_by", query.CreatedBy)
	}

	sqlQuery := `
		SELECT id, type, status, recipient, subject, message, template_id, data,
			   error, provider_ref, created_by, created_at, sent_at
		FROM notifications`
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY created_at DESC"
	if query.Limit > 0 {
		args = append(args, query.Limit)
		sqlQuery += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("notifications retrieval error: %w", err)
	}
	defer rows.Close()

	var notifications []*types.Notification
	for rows.Next() {
		n := &types.Notification{}
		var dataJSON []byte
		var sentAt sql.NullTime

		err := rows.Scan(
			&n.ID,
			&n.Type,
			&n.Status,
			&n.Recipient,
			&n.Subject,
			&n.Message,
			&n.TemplateID,
			&dataJSON,
			&n.Error,
			&n.ProviderRef,
			&n.CreatedBy,
			&n.CreatedAt,
			&sentAt,
		)
		if err != nil {
			return nil, fmt.Errorf("notification scan error: %w", err)
		}
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
				return nil, fmt.Errorf("notification data deserialization error: %w", err)
			}
		}
		if sentAt.Valid {
			n.SentAt = &sentAt.Time
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *PostgresStore) NewBatch() Batch {
	return &postgresBatch{db: s.db}
}

// postgresBatch replays staged writes inside one transaction.
type postgresBatch struct {
	writeSet
	db *sql.DB
}

func (b *postgresBatch) Commit(ctx context.Context) error {
	if err := b.validate(); err != nil {
		return err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("batch begin error: %w", err)
	}
	defer tx.Rollback()

	var now time.Time
	if err := tx.QueryRowContext(ctx, `SELECT NOW()`).Scan(&now); err != nil {
		return fmt.Errorf("server timestamp error: %w", err)
	}

	for _, w := range b.writes {
		if err := applyPostgresWrite(ctx, tx, w, now); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("batch commit error: %w", err)
	}
	return nil
}

func applyPostgresWrite(ctx context.Context, tx *sql.Tx, w pendingWrite, now time.Time) error {
	switch w.kind {
	case writeProductStock:
		result, err := tx.ExecContext(ctx,
			`UPDATE products SET stock = $2, updated_by = $3, updated_at = $4 WHERE id = $1`,
			w.product.ID, w.product.Stock, w.product.UpdatedBy, now,
		)
		if err != nil {
			return fmt.Errorf("product stock update error: %w", err)
		}
		if affected, err := result.RowsAffected(); err == nil && affected == 0 {
			return ErrNotFound
		}
		w.product.UpdatedAt = now

	case writeStockMovement:
		m := w.movement
		var orderID uuid.NullUUID
		if m.OrderID != nil {
			orderID = uuid.NullUUID{UUID: *m.OrderID, Valid: true}
		}
		key := sql.NullString{String: m.IdempotencyKey, Valid: m.IdempotencyKey != ""}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_movements (
				id, product_id, previous_stock, new_stock, quantity, operation,
				reason, performed_by, order_id, idempotency_key, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			m.ID, m.ProductID, m.PreviousStock, m.NewStock, m.Quantity, string(m.Operation),
			m.Reason, m.PerformedBy, orderID, key, now,
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
				return ErrDuplicateMovement
			}
			return fmt.Errorf("stock movement insert error: %w", err)
		}
		m.CreatedAt = now

	case writeStockAlert:
		a := w.stockAlert
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stock_alerts (product_id, threshold, is_active, updated_by, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (product_id) DO UPDATE
			SET threshold = EXCLUDED.threshold, is_active = EXCLUDED.is_active,
				updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`,
			a.ProductID, a.Threshold, a.IsActive, a.UpdatedBy, now,
		)
		if err != nil {
			return fmt.Errorf("stock alert upsert error: %w", err)
		}
		a.UpdatedAt = now

	case writeInventoryAlert:
		a := w.alert
		_, err := tx.ExecContext(ctx, `
			INSERT INTO inventory_alerts (
				id, type, product_id, product_name, current_stock, threshold, priority, read, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			a.ID, a.Type, a.ProductID, a.ProductName, a.CurrentStock, a.Threshold, string(a.Priority), a.Read, now,
		)
		if err != nil {
			return fmt.Errorf("inventory alert insert error: %w", err)
		}
		a.CreatedAt = now

	case writeRestockRequest:
		r := w.restock
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
		_, err := tx.ExecContext(ctx, `
			INSERT INTO restock_requests (
				id, product_id, product_name, current_stock, requested_quantity,
				priority, status, notes, requested_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			r.ID, r.ProductID, r.ProductName, r.CurrentStock, r.RequestedQuantity,
			string(r.Priority), string(r.Status), r.Notes, r.RequestedBy, r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("restock request insert error: %w", err)
		}

	case writeNotification:
		n := w.notification
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
		}
		var data interface{}
		if n.Data != nil {
			encoded, err := json.Marshal(n.Data)
			if err != nil {
				return fmt.Errorf("notification data serialization error: %w", err)
			}
			data = string(encoded)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO notifications (
				id, type, status, recipient, subject, message, template_id, data,
				error, provider_ref, created_by, created_at, sent_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status, error = EXCLUDED.error,
				provider_ref = EXCLUDED.provider_ref, sent_at = EXCLUDED.sent_at`,
			n.ID, string(n.Type), string(n.Status), n.Recipient, n.Subject, n.Message, n.TemplateID, data,
			n.Error, n.ProviderRef, n.CreatedBy, n.CreatedAt, n.SentAt,
		)
		if err != nil {
			return fmt.Errorf("notification save error: %w", err)
		}
	}
	return nil
}
