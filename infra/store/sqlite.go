// Package store provides the sqlite-backed order store. Orders are
// created by checkout and mutated only by the reconciliation engine;
// the payment update is a single statement so concurrent redeliveries
// can never observe a partially written transition.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inhousecard/paycore/reconcile"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteOrderStore handles persistent storage of orders.
type SQLiteOrderStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteOrderStore opens (or creates) the order database with
// multi-process optimizations.
func NewSQLiteOrderStore(dbPath string) (*SQLiteOrderStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_timeout=20000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	s := &SQLiteOrderStore{db: db, path: dbPath}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteOrderStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'pending',
		payment_status TEXT,
		payment_external_id TEXT,
		payment_method TEXT,
		payment_details TEXT,
		payment_confirmed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_payment_external_id ON orders(payment_external_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);
	`

	_, err := s.db.Exec(query)
	return err
}

// retryOperation executes a database operation with retry logic for
// SQLITE_BUSY errors.
func (s *SQLiteOrderStore) retryOperation(operation func() error, maxRetries int) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if strings.Contains(err.Error(), "SQLITE_BUSY") || strings.Contains(err.Error(), "database is locked") {
			lastErr = err
			if attempt < maxRetries {
				backoff := time.Duration(10*(1<<attempt)) * time.Millisecond
				log.Printf("SQLite busy, retrying in %v (attempt %d/%d)", backoff, attempt+1, maxRetries+1)
				time.Sleep(backoff)
				continue
			}
		} else {
			return err
		}
	}

	return fmt.Errorf("operation failed after %d retries, last error: %w", maxRetries+1, lastErr)
}

// Get loads an order by id. Returns reconcile.ErrOrderNotFound when the
// order does not exist.
func (s *SQLiteOrderStore) Get(ctx context.Context, id string) (*reconcile.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, payment_status, payment_external_id, payment_method,
		       payment_details, payment_confirmed_at, created_at, updated_at
		FROM orders WHERE id = ?`, id)

	var (
		order       reconcile.Order
		status      string
		payStatus   sql.NullString
		payExtID    sql.NullString
		payMethod   sql.NullString
		detailsJSON sql.NullString
		confirmedAt sql.NullTime
	)

	err := row.Scan(&order.ID, &status, &payStatus, &payExtID, &payMethod,
		&detailsJSON, &confirmedAt, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reconcile.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	order.Status = reconcile.OrderStatus(status)
	order.PaymentStatus = payStatus.String
	order.PaymentExternalID = payExtID.String
	order.PaymentMethod = payMethod.String
	if confirmedAt.Valid {
		t := confirmedAt.Time
		order.PaymentConfirmedAt = &t
	}
	if detailsJSON.Valid && detailsJSON.String != "" {
		var snapshot reconcile.PaymentSnapshot
		if err := json.Unmarshal([]byte(detailsJSON.String), &snapshot); err == nil {
			order.PaymentDetails = &snapshot
		}
	}

	return &order, nil
}

// ApplyPayment writes every payment field of the order in one atomic
// statement. The snapshot is overwritten whole, never merged.
func (s *SQLiteOrderStore) ApplyPayment(ctx context.Context, id string, update reconcile.PaymentUpdate) error {
	detailsJSON, err := json.Marshal(update.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal payment details: %w", err)
	}

	return s.retryOperation(func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE orders SET
				status = ?,
				payment_status = ?,
				payment_external_id = ?,
				payment_method = ?,
				payment_details = ?,
				payment_confirmed_at = ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			string(update.Status), update.PaymentStatus, update.PaymentExternalID,
			update.PaymentMethod, string(detailsJSON), update.ConfirmedAt.UTC(), id)
		if err != nil {
			return fmt.Errorf("failed to update order %s: %w", id, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return reconcile.ErrOrderNotFound
		}
		return nil
	}, 3)
}

// Create inserts a new pending order. Checkout owns order creation; this
// exists for that collaborator and for tests.
func (s *SQLiteOrderStore) Create(ctx context.Context, id string) error {
	return s.retryOperation(func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO orders (id, status) VALUES (?, 'pending')`, id)
		if err != nil {
			return fmt.Errorf("failed to create order %s: %w", id, err)
		}
		return nil
	}, 3)
}

// Ping verifies the database connection for health checks.
func (s *SQLiteOrderStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteOrderStore) Close() error {
	return s.db.Close()
}
