package output

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jmylchreest/screenharvest/internal/record"
)

const createEquities = `CREATE TABLE IF NOT EXISTS equities (
	symbol       TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	price        TEXT NOT NULL,
	harvested_at TEXT NOT NULL
)`

const insertEquity = `INSERT OR IGNORE INTO equities (symbol, name, price, harvested_at) VALUES (?, ?, ?, ?)`

// SQLiteAppender stores rows in an "equities" table keyed by symbol. A
// symbol already present is left untouched.
type SQLiteAppender struct {
	mu  sync.Mutex
	dbs map[string]*sql.DB
	now func() time.Time
}

// NewSQLiteAppender creates a SQLite appender.
func NewSQLiteAppender() *SQLiteAppender {
	return &SQLiteAppender{dbs: make(map[string]*sql.DB), now: time.Now}
}

func (a *SQLiteAppender) open(dest string) (*sql.DB, error) {
	if db, ok := a.dbs[dest]; ok {
		return db, nil
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	dsn := dest + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dest, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createEquities); err != nil {
		db.Close()
		return nil, fmt.Errorf("create equities table: %w", err)
	}
	a.dbs[dest] = db
	return db, nil
}

// AppendRows inserts rows in one transaction.
func (a *SQLiteAppender) AppendRows(rows []record.Row, dest string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	db, err := a.open(dest)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(insertEquity)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	ts := a.now().UTC().Format(time.RFC3339)
	for _, r := range rows {
		if _, err := stmt.Exec(r.Symbol, r.Name, r.Price, ts); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", r.Symbol, err)
		}
	}
	return tx.Commit()
}

// Close closes every database opened by this appender.
func (a *SQLiteAppender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var errs []error
	for dest, db := range a.dbs {
		errs = append(errs, db.Close())
		delete(a.dbs, dest)
	}
	return errors.Join(errs...)
}
