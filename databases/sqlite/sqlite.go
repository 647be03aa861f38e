package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/m-mizutani/goerr/v2"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const DefaultDBFile string = "midjourney_bot.sqlite"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// New opens filename, creating it when missing, and applies every pending
// migration before handing the connection back.
func New(ctx context.Context, filename string, logger *zap.Logger) (*sql.DB, error) {
	if filename == "" {
		filename = DefaultDBFile
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	err := touchDBFile(filename)
	if err != nil {
		return nil, err
	}

	// the migrate driver closes the handle it is given, so it gets its own
	err = migrateDB(filename, logger)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open database", goerr.V("file", filename))
	}

	err = db.PingContext(ctx)
	if err != nil {
		_ = db.Close()

		return nil, goerr.Wrap(err, "failed to ping database", goerr.V("file", filename))
	}

	return db, nil
}

func migrateDB(filename string, logger *zap.Logger) error {
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return goerr.Wrap(err, "failed to open database for migration", goerr.V("file", filename))
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{DatabaseName: "main"})
	if err != nil {
		_ = db.Close()

		return goerr.Wrap(err, "failed to create migration driver")
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		_ = driver.Close()

		return goerr.Wrap(err, "failed to load migrations")
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		_ = driver.Close()

		return goerr.Wrap(err, "failed to create migrator")
	}
	defer m.Close()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return goerr.Wrap(err, "failed to apply migrations", goerr.V("file", filename))
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return goerr.Wrap(err, "failed to read migration version")
	}

	logger.Info("database migrated",
		zap.String("file", filename),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))

	return nil
}

func touchDBFile(filename string) error {
	_, err := os.Stat(filename)
	if os.IsNotExist(err) {
		file, createErr := os.Create(filename)
		if createErr != nil {
			return goerr.Wrap(createErr, "failed to create database file", goerr.V("file", filename))
		}

		closeErr := file.Close()
		if closeErr != nil {
			return goerr.Wrap(closeErr, "failed to close database file", goerr.V("file", filename))
		}
	}

	return nil
}
