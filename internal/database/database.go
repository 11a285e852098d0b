package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"landlordpay/server/internal/ledger"
)

var (
	ErrUnitOccupied     = errors.New("unit already has an active tenant")
	ErrPropertyOccupied = errors.New("property still has active tenants")
)

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewDatabase opens the SQLite database at dsn. The pool is limited to a single
// connection so write transactions never race for the SQLite write lock.
func NewDatabase(dsn string, log *logrus.Logger) (*Database, error) {
	if log == nil {
		log = logrus.New()
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetOutput(os.Stdout)
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	// Enable foreign keys
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	return &Database{db: db, logger: log}, nil
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// Transaction runs fn inside a database transaction bound to ctx.
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsUniqueViolation reports whether err was raised by a UNIQUE or PRIMARY KEY constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// notFound converts gorm's missing-record error into the ledger's NotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", what, id, ledger.ErrNotFound)
	}
	return err
}

// NewTestDB opens a migrated in-memory database private to name.
func NewTestDB(name string) (*Database, error) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	d, err := NewDatabase(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), log)
	if err != nil {
		return nil, err
	}
	if err := d.RunMigrations(); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}
