package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"go.uber.org/zap"
)

// DefaultFilename is the ledger file used when no path is configured
const DefaultFilename = "db.sqlite"

// SQLiteLedger implements Ledger on a local SQLite file
type SQLiteLedger struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type tenantRow struct {
	DatabaseName string `db:"database_name"`
	Username     string `db:"username"`
	Password     string `db:"password"`
	Status       string `db:"status"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

// NewSQLiteLedger opens (creating if needed) the ledger at path and brings
// its schema up to date
func NewSQLiteLedger(ctx context.Context, path string, logger *zap.Logger) (*SQLiteLedger, error) {
	if path == "" {
		path = DefaultFilename
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases intact
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	l := &SQLiteLedger{db: db, logger: logger}

	m := &migrator{ledger: l, log: logger}
	if err := m.up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate ledger: %w", err)
	}

	return l, nil
}

// Exists reports whether a row for the tenant exists
func (l *SQLiteLedger) Exists(ctx context.Context, tenantID string) (bool, error) {
	query, args, err := sq.Select("COUNT(*)").
		From(tableName).
		Where(sq.Eq{"database_name": tenantID}).
		ToSql()
	if err != nil {
		return false, err
	}

	var count int
	if err := l.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to check tenant: %w", err)
	}
	return count > 0, nil
}

// Insert records a new tenant, failing with ErrConflict if one exists
func (l *SQLiteLedger) Insert(ctx context.Context, tenant *model.Tenant) error {
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	query, args, err := sq.Insert(tableName).
		Columns("database_name", "username", "password", "status", "created_at", "updated_at").
		Values(
			tenant.TenantID,
			tenant.Username,
			tenant.EncryptedSecret,
			string(tenant.Status),
			tenant.CreatedAt.Format(time.RFC3339Nano),
			tenant.UpdatedAt.Format(time.RFC3339Nano),
		).
		Suffix("ON CONFLICT (database_name) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}

	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConflict
	}
	return nil
}

// Get retrieves the row for a tenant
func (l *SQLiteLedger) Get(ctx context.Context, tenantID string) (*model.Tenant, error) {
	query, args, err := sq.Select("database_name", "username", "password", "status", "created_at", "updated_at").
		From(tableName).
		Where(sq.Eq{"database_name": tenantID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row tenantRow
	if err := l.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return row.toModel(), nil
}

// UpdateStatus moves the tenant to a new provisioning status
func (l *SQLiteLedger) UpdateStatus(ctx context.Context, tenantID string, status model.TenantStatus) error {
	query, args, err := sq.Update(tableName).
		Set("status", string(status)).
		Set("updated_at", time.Now().UTC().Format(time.RFC3339Nano)).
		Where(sq.Eq{"database_name": tenantID}).
		ToSql()
	if err != nil {
		return err
	}

	result, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the ledger connection
func (l *SQLiteLedger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Close closes the ledger
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (r tenantRow) toModel() *model.Tenant {
	t := &model.Tenant{
		TenantID:        r.DatabaseName,
		Username:        r.Username,
		EncryptedSecret: r.Password,
		Status:          model.TenantStatus(r.Status),
	}
	// rows written before timestamps were tracked carry empty strings
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, r.CreatedAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, r.UpdatedAt)
	return t
}
