package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mbolis/civic-survey/config"
	"github.com/mbolis/civic-survey/log"
)

//go:embed migrations
var dbMigrations embed.FS

func migrateDB(db *sql.DB, driver string) error {
	src, err := iofs.New(dbMigrations, "migrations/"+driver)
	if err != nil {
		return err
	}

	var dst migratedb.Driver
	switch driver {
	case config.DriverSQLite:
		dst, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	case config.DriverPostgres:
		dst, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		err = fmt.Errorf("no migrations for driver %q", driver)
	}
	if err != nil {
		return err
	}

	migrator, err := migrate.NewWithInstance("iofs", src, driver, dst)
	if err != nil {
		return err
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Debug("database schema already up to date")
	case err != nil:
		return err
	default:
		version, _, _ := migrator.Version()
		log.Infof("database schema migrated to version %d", version)
	}
	return nil
}
