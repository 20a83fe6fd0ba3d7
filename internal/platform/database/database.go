// Package database opens the recommendation history store.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"emotionai-agent/internal/therapy"
	"emotionai-agent/migrations"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS recommendations (
    id TEXT PRIMARY KEY,
    patient_id TEXT NOT NULL,
    therapist_id TEXT NOT NULL,
    dominant_emotion TEXT NOT NULL,
    analysis TEXT NOT NULL,
    recommendations TEXT NOT NULL,
    resources TEXT NOT NULL DEFAULT '[]',
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS recommendations_patient_created_idx
    ON recommendations (patient_id, created_at DESC);
`

// Target is a parsed DATABASE_URL.
type Target struct {
	Driver  string
	DSN     string
	Dialect therapy.Dialect
}

// ParseURL maps postgres:// and postgresql:// URLs to lib/pq, and sqlite://,
// file: URLs or bare paths ending in .db to modernc sqlite.
func ParseURL(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Target{}, errors.New("empty database url")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Target{Driver: "postgres", DSN: raw, Dialect: therapy.DialectPostgres}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		return Target{Driver: "sqlite", DSN: strings.TrimPrefix(raw, "sqlite://"), Dialect: therapy.DialectSQLite}, nil
	case strings.HasPrefix(raw, "file:"), strings.HasSuffix(raw, ".db"), raw == ":memory:":
		return Target{Driver: "sqlite", DSN: raw, Dialect: therapy.DialectSQLite}, nil
	}
	return Target{}, fmt.Errorf("unsupported database url %q", raw)
}

// Open connects to the target, retrying a few times while the server comes up,
// and brings the schema up to date.
func Open(t Target) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open(t.Driver, t.DSN)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		if db != nil {
			db.Close()
		}
		if t.Dialect != therapy.DialectPostgres {
			break
		}
		log.Printf("Waiting for DB... (%d/10)", i+1)
		time.Sleep(time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", t.Driver, err)
	}

	if t.Dialect == therapy.DialectSQLite {
		// A single connection keeps :memory: databases shared across queries.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(sqliteSchema); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply sqlite schema: %w", err)
		}
		return db, nil
	}

	if err := migratePostgres(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func migratePostgres(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration init failed: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	log.Println("Migrations applied successfully!")
	return nil
}
