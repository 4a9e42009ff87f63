// Package migrations embeds the Postgres schema and applies it with
// golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var files embed.FS

// Migrator wraps a golang-migrate instance bound to the embedded files.
type Migrator struct {
	m   *migrate.Migrate
	log *zerolog.Logger
}

// New opens a migrator for databaseURL. postgres:// and postgresql:// URLs
// are rewritten to the pgx driver scheme.
func New(databaseURL string, logger *zerolog.Logger) (*Migrator, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	l := logger.With().Str("component", "migrations").Logger()
	m.Log = &migrateLogger{log: &l}
	return &Migrator{m: m, log: &l}, nil
}

// DriverURL maps a libpq style URL to the scheme the pgx driver registers.
func DriverURL(databaseURL string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (g *Migrator) Up() error {
	if err := g.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the given number of migrations.
func (g *Migrator) Down(steps int) error {
	if steps <= 0 {
		steps = 1
	}
	if err := g.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Version returns the applied version; 0 when nothing has been applied.
func (g *Migrator) Version() (uint, bool, error) {
	v, dirty, err := g.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (g *Migrator) Close() error {
	srcErr, dbErr := g.m.Close()
	return errors.Join(srcErr, dbErr)
}

type migrateLogger struct {
	log *zerolog.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool { return false }
