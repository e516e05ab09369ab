package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/mbolis/civic-survey/config"
)

// Open connects to the configured database and brings its schema up to date.
// Queries in this module use $N placeholders, which both drivers accept as
// long as parameters first appear in ascending order.
func Open(cfg config.Config) (db *sql.DB, err error) {
	dsn := cfg.DBUrl
	if cfg.DBDriver == config.DriverSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err = sql.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping")
	}

	// db tuning options
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	err = migrateDB(db, cfg.DBDriver)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	return db, nil
}

// sqliteDSN turns foreign keys on for every pooled connection, not just the
// first one, and waits on locks instead of failing with SQLITE_BUSY.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}
