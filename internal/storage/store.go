package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"ventas/internal/sales"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Store is the relational ledger store. It implements sales.Storage.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.Logger
}

// Open connects to databaseURL, runs the migrations and returns a ready store.
func Open(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dialect, driverName, target, err := ParseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	dsn := target
	if dialect == SQLite {
		if dir := filepath.Dir(target); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create db directory: %w", err)
			}
		}
		dsn = sqliteDSN(target)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == SQLite {
		// A single writer avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dialect, driverName, dsn); err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{db: db, dialect: dialect, logger: logger}
	logger.Info("ledger store ready", zap.String("dialect", string(store.Dialect())))
	return store, nil
}

// Dialect reports which SQL flavour the store talks to.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Atomic runs fn inside one transaction, committing only when fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(sales.Repository) error) error {
	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions())
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&salesRepository{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
