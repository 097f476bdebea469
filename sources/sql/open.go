package reportsql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // SQLite driver

	"github.com/goliatone/go-labreports/report"
)

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DriverName maps a user facing database type onto a registered driver.
func DriverName(dbType string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "mysql", "mariadb":
		return "mysql", nil
	case "postgres", "postgresql", "pgx":
		return "pgx", nil
	case "sqlite", "sqlite3":
		return "sqlite", nil
	default:
		return "", report.NewError(report.KindValidation, fmt.Sprintf("unsupported database type: %s", dbType), nil)
	}
}

// Open opens and pings a database.
func Open(ctx context.Context, dbType, dsn string, opts Options) (*sql.DB, error) {
	driver, err := DriverName(dbType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, report.NewError(report.KindValidation, "database dsn is required", nil)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
