package storage

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteDB implements DB using one sqlite table.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a sqlite database file at path.
func NewSQLite(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %s: %w", path, err)
	}
	// A single connection serializes writers and keeps Insert atomic
	// without relying on sqlite's busy handling.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		 k BLOB PRIMARY KEY
		,v BLOB
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

// Get retrieves a value by key.
func (s *SQLiteDB) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.QueryRow(`SELECT v FROM kv WHERE k = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get: %w", err)
	}
	return val, nil
}

// Put stores a key-value pair.
func (s *SQLiteDB) Put(key, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO kv (k, v) VALUES (?, ?) ON CONFLICT (k) DO UPDATE SET v = excluded.v`, key, value)
	if err != nil {
		return fmt.Errorf("sqlite put: %w", err)
	}
	return nil
}

// Insert stores the pair only when key is absent.
func (s *SQLiteDB) Insert(key, value []byte) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO kv (k, v) VALUES (?, ?)`, key, value)
	if err != nil {
		return false, fmt.Errorf("sqlite insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite insert: %w", err)
	}
	return n == 1, nil
}

// Delete removes a key.
func (s *SQLiteDB) Delete(key []byte) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE k = ?`, key); err != nil {
		return fmt.Errorf("sqlite delete: %w", err)
	}
	return nil
}

// Has checks if a key exists.
func (s *SQLiteDB) Has(key []byte) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE k = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite has: %w", err)
	}
	return true, nil
}

// ForEach iterates over all keys with the given prefix. Rows are read in
// full before fn runs, releasing the connection for writes from fn.
func (s *SQLiteDB) ForEach(prefix []byte, fn func(key, value []byte) error) error {
	var rows *sql.Rows
	var err error
	if len(prefix) == 0 {
		rows, err = s.db.Query(`SELECT k, v FROM kv ORDER BY k`)
	} else {
		rows, err = s.db.Query(`SELECT k, v FROM kv WHERE k >= ? ORDER BY k`, prefix)
	}
	if err != nil {
		return fmt.Errorf("sqlite scan: %w", err)
	}
	var keys, vals [][]byte
	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite scan: %w", err)
		}
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		keys = append(keys, k)
		vals = append(vals, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("sqlite scan: %w", err)
	}
	rows.Close()

	for i := range keys {
		if err := fn(keys[i], vals[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
