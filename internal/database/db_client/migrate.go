package db_client

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const createRooms = `
	CREATE TABLE IF NOT EXISTS rooms (
		roomName TEXT PRIMARY KEY,
		content  TEXT NOT NULL DEFAULT '',
		token    TEXT NOT NULL DEFAULT ''
	)`

const addTokenColumn = `ALTER TABLE rooms ADD COLUMN token TEXT NOT NULL DEFAULT ''`

// Migrate creates the rooms table when it does not exist yet. A table left
// by an older deployment keeps its rows and gains the token column if it
// lacks one.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	if _, err := db.ExecContext(ctx, createRooms); err != nil {
		return fmt.Errorf("create rooms: %w", err)
	}
	cols, err := roomColumns(ctx, db, driver)
	if err != nil {
		return fmt.Errorf("inspect rooms: %w", err)
	}
	if !cols["token"] {
		if _, err := db.ExecContext(ctx, addTokenColumn); err != nil {
			return fmt.Errorf("add token column: %w", err)
		}
		zap.L().Info("rooms table upgraded with token column")
	}
	zap.L().Info("rooms table ready")
	return nil
}

// roomColumns returns the lower-cased column names of the rooms table.
func roomColumns(ctx context.Context, db *sql.DB, driver string) (map[string]bool, error) {
	q := `SELECT name FROM pragma_table_info('rooms')`
	if driver == DriverPostgres {
		q = `SELECT column_name FROM information_schema.columns WHERE table_name = 'rooms'`
	}
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = true
	}
	return cols, rows.Err()
}

// RepairTokens gives every legacy row without a token a fresh one, so the
// join path can assume tokens exist from room creation on.
func RepairTokens(ctx context.Context, db *sql.DB, driver string, gen func() string) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT roomName FROM rooms WHERE token IS NULL OR token = ''`)
	if err != nil {
		return 0, fmt.Errorf("select legacy rooms: %w", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			_ = rows.Close()
			return 0, err
		}
		names = append(names, n)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(names) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	upd := Rebind(driver, `UPDATE rooms SET token = ? WHERE roomName = ? AND (token IS NULL OR token = '')`)
	for _, n := range names {
		if _, err := tx.ExecContext(ctx, upd, gen(), n); err != nil {
			return 0, fmt.Errorf("repair token %s: %w", n, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	zap.L().Info("legacy room tokens repaired", zap.Int("rooms", len(names)))
	return len(names), nil
}

// Rebind rewrites '?' placeholders into the '$n' form postgres expects.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}
