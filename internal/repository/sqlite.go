package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fjacquet/statement-import/internal/logging"
	"fjacquet/statement-import/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var schema = []string{`
CREATE TABLE IF NOT EXISTS transactions (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	session_id         TEXT NOT NULL,
	row_number         INTEGER NOT NULL,
	merchant_name      TEXT NOT NULL,
	amount             TEXT NOT NULL,
	occurred_on        TEXT NOT NULL,
	kind               TEXT NOT NULL,
	category           TEXT NOT NULL,
	is_manual_category INTEGER NOT NULL DEFAULT 0,
	created_at         TEXT NOT NULL,
	UNIQUE (session_id, row_number)
)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions (user_id, occurred_on)`,
}

// SQLiteRepository is the Repository backed by a local SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// OpenSQLite opens (or creates) the database at path and ensures the schema
// exists.
func OpenSQLite(ctx context.Context, path string, logger logging.Logger) (*SQLiteRepository, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), models.PermissionDirectory); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: SQLite serializes writers, and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure db: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}

	return &SQLiteRepository{
		db:     db,
		logger: logging.OrDefault(logger).WithField(logging.FieldComponent, "repository"),
		now:    time.Now,
	}, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Save inserts records in one transaction. Rows already stored for the same
// session and row number are ignored.
func (r *SQLiteRepository) Save(ctx context.Context, records []models.CommitRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (
			id, user_id, session_id, row_number, merchant_name, amount,
			occurred_on, kind, category, is_manual_category, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id, row_number) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	createdAt := r.now().UTC().Format(time.RFC3339)
	saved := 0
	for _, rec := range records {
		res, err := stmt.ExecContext(ctx,
			uuid.NewString(), rec.UserID, rec.SessionID, rec.RowNumber, rec.MerchantName,
			rec.Amount.StringFixed(2), rec.Date, string(rec.Kind), rec.Category,
			rec.IsManualCategory, createdAt)
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", rec.RowNumber, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert row %d: %w", rec.RowNumber, err)
		}
		saved += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	r.logger.Info("Transactions saved",
		logging.Field{Key: logging.FieldCount, Value: saved},
		logging.Field{Key: "skipped", Value: len(records) - saved})
	return saved, nil
}

// ListInRange returns the user's transactions between two days inclusive.
func (r *SQLiteRepository) ListInRange(ctx context.Context, userID string, from, to time.Time) ([]models.StoredTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, merchant_name, amount, occurred_on, kind, category
		FROM transactions
		WHERE user_id = ? AND occurred_on BETWEEN ? AND ?
		ORDER BY occurred_on ASC, row_number ASC`,
		userID, from.Format(models.ISODateLayout), to.Format(models.ISODateLayout))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.StoredTransaction
	for rows.Next() {
		var (
			st             models.StoredTransaction
			amount, date   string
			kind, category string
		)
		if err := rows.Scan(&st.ID, &st.MerchantName, &amount, &date, &kind, &category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if st.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: bad amount %q: %w", st.ID, amount, err)
		}
		if st.OccurredOn, err = time.Parse(models.ISODateLayout, date); err != nil {
			return nil, fmt.Errorf("transaction %s: bad date %q: %w", st.ID, date, err)
		}
		st.Kind = models.Kind(kind)
		st.Category = category
		out = append(out, st)
	}
	return out, rows.Err()
}

// Count returns the number of stored transactions for a user.
func (r *SQLiteRepository) Count(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions WHERE user_id = ?", userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}
