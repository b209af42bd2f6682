// Package store persists uploaded backgrounds and scheduled posts in a
// local SQLite database.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Options configures [Open].
type Options struct {
	// Path is the SQLite database file.
	Path string
	// UploadsDir receives copies of uploaded files.
	UploadsDir string
	// PublicPrefix is prepended to stored file names to form public URLs.
	// Defaults to "/media/".
	PublicPrefix string
	Logger       *slog.Logger
}

// Store is the persistence layer. It is safe for concurrent use.
type Store struct {
	db           *gorm.DB
	uploadsDir   string
	publicPrefix string
	log          *slog.Logger
	now          func() time.Time
}

// Open opens or creates the database and migrates its schema.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("open store: empty database path")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	prefix := opts.PublicPrefix
	if prefix == "" {
		prefix = "/media/"
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	if opts.UploadsDir != "" {
		if err := os.MkdirAll(opts.UploadsDir, 0o755); err != nil {
			return nil, fmt.Errorf("create uploads dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(opts.Path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", opts.Path, err)
	}

	// SQLite allows a single writer.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Upload{}, &ScheduledPost{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Debug("store opened", "path", opts.Path, "uploads", opts.UploadsDir)
	return &Store{
		db:           db,
		uploadsDir:   opts.UploadsDir,
		publicPrefix: prefix,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UploadsDir returns the directory holding uploaded files.
func (s *Store) UploadsDir() string { return s.uploadsDir }
