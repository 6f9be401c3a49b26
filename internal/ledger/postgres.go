package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vmskonakanchi/ymts-crud-api/internal/model"
	"go.uber.org/zap"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS db_users (
		database_name TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'provisioned',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresLedger implements Ledger for PostgreSQL
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgreSQL backed ledger and ensures its table exists
func NewPostgresLedger(
	ctx context.Context,
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (*PostgresLedger, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create ledger table: %w", err)
	}

	return &PostgresLedger{
		pool:   pool,
		logger: logger,
	}, nil
}

// Exists reports whether a row for the tenant exists
func (l *PostgresLedger) Exists(ctx context.Context, tenantID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM db_users WHERE database_name = $1)`

	var exists bool
	if err := l.pool.QueryRow(ctx, query, tenantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check tenant: %w", err)
	}
	return exists, nil
}

// Insert records a new tenant, failing with ErrConflict if one exists
func (l *PostgresLedger) Insert(ctx context.Context, tenant *model.Tenant) error {
	query := `
		INSERT INTO db_users (database_name, username, password, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (database_name) DO NOTHING
	`

	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	tag, err := l.pool.Exec(ctx, query,
		tenant.TenantID,
		tenant.Username,
		tenant.EncryptedSecret,
		string(tenant.Status),
		tenant.CreatedAt,
		tenant.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	l.logger.Debug("Tenant recorded in ledger", zap.String("tenant_id", tenant.TenantID))
	return nil
}

// Get retrieves the row for a tenant
func (l *PostgresLedger) Get(ctx context.Context, tenantID string) (*model.Tenant, error) {
	query := `
		SELECT database_name, username, password, status, created_at, updated_at
		FROM db_users
		WHERE database_name = $1
	`

	var (
		tenant model.Tenant
		status string
	)
	err := l.pool.QueryRow(ctx, query, tenantID).Scan(
		&tenant.TenantID,
		&tenant.Username,
		&tenant.EncryptedSecret,
		&status,
		&tenant.CreatedAt,
		&tenant.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	tenant.Status = model.TenantStatus(status)

	return &tenant, nil
}

// UpdateStatus moves the tenant to a new provisioning status
func (l *PostgresLedger) UpdateStatus(ctx context.Context, tenantID string, status model.TenantStatus) error {
	query := `UPDATE db_users SET status = $2, updated_at = $3 WHERE database_name = $1`

	tag, err := l.pool.Exec(ctx, query, tenantID, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update tenant status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks the database connection
func (l *PostgresLedger) Ping(ctx context.Context) error {
	return l.pool.Ping(ctx)
}

// Close closes the connection pool
func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}
