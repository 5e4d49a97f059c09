package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/iliyamo/floor-allocation/internal/config"
)

// Dialect captures the SQL differences between the supported stores.
// LockClause is appended to SELECTs that must take row locks inside a
// transaction; SQLite has no row locks and serialises writers instead.
// MySQL runs at READ COMMITTED so locking reads take record locks only,
// without the gap locks that make unrelated allocations deadlock.
type Dialect struct {
	Name       string
	LockClause string
	Isolation  sql.IsolationLevel
}

var (
	MySQL  = Dialect{Name: "mysql", LockClause: " FOR UPDATE", Isolation: sql.LevelReadCommitted}
	SQLite = Dialect{Name: "sqlite", LockClause: "", Isolation: sql.LevelDefault}
)

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case MySQL.Name:
		return MySQL, nil
	case SQLite.Name:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported driver %q", driver)
}

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a SQLite file for development and tests.  The pool is
// capped at one connection: every transaction then owns the whole
// database, which gives the same no-double-booking guarantee that row
// locks give on MySQL.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ping(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// ping verifies the connection with a timeout.
func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// OpenConfigured opens the store selected by cfg.DBDriver.
func OpenConfigured(cfg config.Config) (*sql.DB, Dialect, error) {
	d, err := DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, Dialect{}, err
	}
	var db *sql.DB
	if d.Name == SQLite.Name {
		db, err = OpenSQLite(cfg.SQLitePath)
	} else {
		db, err = Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if err != nil {
		return nil, Dialect{}, err
	}
	return db, d, nil
}
