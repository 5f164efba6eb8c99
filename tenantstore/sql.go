package tenantstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/c360/sitekit/component"
	"github.com/c360/sitekit/errors"
	"github.com/c360/sitekit/page"
	"github.com/c360/sitekit/pkg/retry"
)

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	driver      string
	createTable string
	placeholder func(n int) string
}

var dialects = map[string]dialect{
	"sqlite": {
		driver: "sqlite",
		createTable: `CREATE TABLE IF NOT EXISTS tenant_configs (
			tenant_id  TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			version    INTEGER NOT NULL DEFAULT 1,
			updated_at TIMESTAMP NOT NULL
		)`,
		placeholder: func(int) string { return "?" },
	},
	"postgres": {
		driver: "postgres",
		createTable: `CREATE TABLE IF NOT EXISTS tenant_configs (
			tenant_id  TEXT PRIMARY KEY,
			document   TEXT NOT NULL,
			version    BIGINT NOT NULL DEFAULT 1,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	},
	"mysql": {
		driver: "mysql",
		createTable: `CREATE TABLE IF NOT EXISTS tenant_configs (
			tenant_id  VARCHAR(64) PRIMARY KEY,
			document   LONGTEXT NOT NULL,
			version    BIGINT NOT NULL DEFAULT 1,
			updated_at DATETIME(6) NOT NULL
		)`,
		placeholder: func(int) string { return "?" },
	},
}

// SQLStore keeps one row per tenant in the tenant_configs table. Saves use
// the version column for optimistic concurrency.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// OpenSQLStore opens a database with driver ("sqlite", "postgres" or
// "mysql") and creates the table when missing.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, errors.WrapFatal(fmt.Errorf("%w: unsupported sql driver %q", errors.ErrInvalidConfig, driver),
			"SQLStore", "Open", "driver selection")
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, errors.WrapFatal(err, "SQLStore", "Open", "open database")
	}
	if driver == "sqlite" {
		// One writer at a time avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(10 * time.Minute)
	}

	s := &SQLStore{
		db:      db,
		dialect: d,
		logger:  slog.Default().With("component", "tenantstore", "backend", "sql", "driver", driver),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errors.WrapTransient(errors.Join(errors.ErrStorageUnavailable, err), "SQLStore", "Ping", "ping database")
	}
	return nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return errors.WrapFatal(err, "SQLStore", "migrate", "create tenant_configs table")
	}
	return nil
}

// query rewrites ? placeholders for the dialect.
func (s *SQLStore) query(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString(s.dialect.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) read(ctx context.Context, tenantID string) ([]byte, int64, error) {
	var doc string
	var version int64
	err := s.db.QueryRowContext(ctx,
		s.query(`SELECT document, version FROM tenant_configs WHERE tenant_id = ?`), tenantID,
	).Scan(&doc, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, notFound(tenantID)
	}
	if err != nil {
		return nil, 0, errors.WrapTransient(err, "SQLStore", "read", "select document")
	}
	return []byte(doc), version, nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, tenantID string) (*page.TenantBlob, error) {
	if err := ValidateTenantID(tenantID); err != nil {
		return nil, err
	}
	raw, _, err := s.read(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return page.ParseTenantComponentBlob(raw)
}

// Put implements Seeder, overwriting any existing document.
func (s *SQLStore) Put(ctx context.Context, tenantID string, raw []byte) error {
	if err := ValidateTenantID(tenantID); err != nil {
		return err
	}
	if _, err := page.ParseTenantComponentBlob(raw); err != nil {
		return err
	}

	_, version, err := s.read(ctx, tenantID)
	switch {
	case errors.Is(err, errors.ErrTenantNotFound):
		return s.insert(ctx, tenantID, raw)
	case err != nil:
		return err
	}
	return s.update(ctx, tenantID, raw, version)
}

func (s *SQLStore) insert(ctx context.Context, tenantID string, raw []byte) error {
	_, err := s.db.ExecContext(ctx,
		s.query(`INSERT INTO tenant_configs (tenant_id, document, version, updated_at) VALUES (?, ?, 1, ?)`),
		tenantID, string(raw), time.Now().UTC())
	if isUniqueViolation(err) {
		// Another writer inserted the tenant first.
		return errors.WrapTransient(errors.Join(errors.ErrSaveConflict, err), "SQLStore", "insert", "insert document")
	}
	if err != nil {
		return errors.WrapTransient(err, "SQLStore", "insert", "insert document")
	}
	return nil
}

// SQLite primary result code for constraint failures; extended codes keep it
// in the low byte (1555 primary key, 2067 unique).
const sqliteConstraint = 19

// isUniqueViolation reports whether err is a duplicate key error from one of
// the supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqliteConstraint
	}
	return false
}

func (s *SQLStore) update(ctx context.Context, tenantID string, raw []byte, version int64) error {
	res, err := s.db.ExecContext(ctx,
		s.query(`UPDATE tenant_configs SET document = ?, version = version + 1, updated_at = ?
			WHERE tenant_id = ? AND version = ?`),
		string(raw), time.Now().UTC(), tenantID, version)
	if err != nil {
		return errors.WrapTransient(err, "SQLStore", "update", "update document")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.WrapTransient(err, "SQLStore", "update", "rows affected")
	}
	if n == 0 {
		return errors.WrapTransient(errors.ErrSaveConflict, "SQLStore", "update", "version check")
	}
	return nil
}

// SavePage implements Store, retrying on version conflicts.
func (s *SQLStore) SavePage(ctx context.Context, tenantID, slug string, list []component.Instance) error {
	if err := validateSave(tenantID, slug, list); err != nil {
		return err
	}

	cfg := retry.Quick()
	cfg.MaxAttempts = 5
	cfg.RetryIf = func(err error) bool { return errors.Is(err, errors.ErrSaveConflict) }

	return retry.Do(ctx, cfg, func() error {
		current, version, err := s.read(ctx, tenantID)
		notFound := errors.Is(err, errors.ErrTenantNotFound)
		if err != nil && !notFound {
			return err
		}

		next, err := applyPage(current, slug, list)
		if err != nil {
			return retry.NonRetryable(err)
		}
		if notFound {
			return s.insert(ctx, tenantID, next)
		}
		if err := s.update(ctx, tenantID, next, version); err != nil {
			s.logger.Debug("Save conflict, retrying", "tenant", tenantID, "page", slug)
			return err
		}
		return nil
	})
}

// Tenants implements Store.
func (s *SQLStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id FROM tenant_configs ORDER BY tenant_id`)
	if err != nil {
		return nil, errors.WrapTransient(err, "SQLStore", "Tenants", "select tenant ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.WrapTransient(err, "SQLStore", "Tenants", "scan tenant id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapTransient(err, "SQLStore", "Tenants", "iterate rows")
	}
	return ids, nil
}
