package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS dispatch_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	free_slots INTEGER NOT NULL,
	hired TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatch_decisions_ts ON dispatch_decisions (ts);
CREATE TABLE IF NOT EXISTS dispatch_collects (
	decision_id INTEGER NOT NULL REFERENCES dispatch_decisions (id),
	slot INTEGER NOT NULL,
	name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS dispatch_collects_name ON dispatch_collects (name);`

// SQLiteStore keeps one row per tick plus one row per collected retriever so
// that every filter runs in SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the decision and its collects in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, rec LogRecord) (err error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO dispatch_decisions (ts, free_slots, hired, priority, record) VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp.UnixNano(), rec.FreeSlots, rec.Hired, rec.Priority, string(b))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, c := range rec.Collected {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO dispatch_collects (decision_id, slot, name) VALUES (?, ?, ?)`,
			id, c.Slot, c.Name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Query returns the records matching q in time order.
func (s *SQLiteStore) Query(ctx context.Context, q LogQuery) ([]LogRecord, error) {
	var args []any
	query := `SELECT d.record FROM dispatch_decisions d WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND d.ts >= ?`
		args = append(args, q.Start.UnixNano())
	}
	if !q.End.IsZero() {
		query += ` AND d.ts <= ?`
		args = append(args, q.End.UnixNano())
	}
	if q.HiredOnly {
		query += ` AND d.hired != ''`
	}
	if q.Retriever != "" {
		query += ` AND (d.hired = ? OR EXISTS (SELECT 1 FROM dispatch_collects c WHERE c.decision_id = d.id AND c.name = ?))`
		args = append(args, q.Retriever, q.Retriever)
	}
	query += ` ORDER BY d.ts, d.id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []LogRecord
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r LogRecord
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
