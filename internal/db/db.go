// Package db wraps the relational index connection (projects, project
// settings, document versions) and runs embedded migrations on startup.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"

	"github.com/livingdocs/pipeline/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the sqlx connection pool backing the artifact store's
// relational index.
type DB struct {
	*sqlx.DB
}

// NewDatabase opens a connection, pings it, and runs pending migrations.
// It returns a cleanup func the caller should defer.
func NewDatabase(cfg *config.DBConfig) (*DB, func(), error) {
	conn, err := sqlx.Connect(cfg.Driver, cfg.GetDSN())
	if err != nil {
		return nil, func() {}, fmt.Errorf("connect to database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, func() {}, fmt.Errorf("ping database: %w", err)
	}

	database := &DB{DB: conn}

	slog.Info("running database migrations")
	if err := database.RunMigrations(); err != nil {
		_ = conn.Close()
		return nil, func() {}, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations complete")

	return database, func() {
		if err := conn.Close(); err != nil {
			slog.Error("failed to close database connection", "error", err)
		}
	}, nil
}

// RunMigrations applies any pending embedded migrations. A database left
// dirty by a previously failed migration is reported rather than retried
// automatically.
func (db *DB) RunMigrations() error {
	migrator, err := db.newMigrator()
	if err != nil {
		return err
	}

	_, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("get migration version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in a dirty migration state; run 'migrate force <version>' to recover")
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (db *DB) newMigrator() (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create database driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
}
