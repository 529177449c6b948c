package history

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	glebarez "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	ltsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store wraps a gorm connection to the run-history database.
type Store struct {
	db *gorm.DB
}

// isRemote reports whether dsn points at a libsql/Turso endpoint rather
// than a local file, mirroring termfx-morfx/db/sqlite.go's isURL.
func isRemote(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "https://")
}

// Connect opens the history database at dsn (a local file path, or a
// libsql:// / https:// URL for a remote Turso database), migrates it, and
// returns a ready Store. debug enables gorm's query logger.
func Connect(dsn string, debug bool) (*Store, error) {
	if !isRemote(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("history: create db directory: %w", err)
			}
		}
	}

	cfg := &gorm.Config{}
	if debug {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)

	if isRemote(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv("CQ_HISTORY_TOKEN"); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("history: create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = ltsqlite.New(ltsqlite.Config{DriverName: "libsql", Conn: conn, DSN: dsn})
	} else {
		// Local file history uses glebarez/sqlite's pure-Go driver so cq
		// carries no cgo dependency of its own (the tree-sitter grammars
		// are cgo; the history store doesn't need to be).
		dialector = glebarez.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("history: connect: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Migrate brings the history schema up to date.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Run{})
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record writes one run to history. Persisting history is ambient and
// best-effort: a write failure is logged and swallowed rather than
// propagated, since no search result depends on the history store.
func (s *Store) Record(pattern string, cpp bool, path string, matchCount int, duration time.Duration, bindingCounts map[string]int) {
	blob, err := json.Marshal(bindingCounts)
	if err != nil {
		log.Printf("history: encode bindings: %v", err)
		blob = []byte("{}")
	}

	run := Run{
		Pattern:    pattern,
		CPP:        cpp,
		Path:       path,
		Matches:    matchCount,
		DurationMS: duration.Milliseconds(),
		Bindings:   blob,
	}

	if err := s.db.Create(&run).Error; err != nil {
		log.Printf("history: write run: %v", err)
	}
}

// List returns the most recent runs, newest first, capped at limit (0
// means no cap).
func (s *Store) List(limit int) ([]Run, error) {
	q := s.db.Order("started_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var runs []Run
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	return runs, nil
}
