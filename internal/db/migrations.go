package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// migration brings databases created by earlier releases up to the current
// schema. Each one must be idempotent. Append new migrations at the end.
type migration struct {
	name string
	stmt string
	// column, when set, skips the migration if table already has it.
	table, column string
}

var migrations = []migration{
	{
		name:   "users.full_name",
		stmt:   `ALTER TABLE users ADD COLUMN full_name TEXT`,
		table:  "users",
		column: "full_name",
	},
	{
		name:   "items.label_printed",
		stmt:   `ALTER TABLE items ADD COLUMN label_printed INTEGER NOT NULL DEFAULT 0`,
		table:  "items",
		column: "label_printed",
	},
	{
		name: "transactions.created_at index",
		stmt: `CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at)`,
	},
}

func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if m.column != "" {
			has, err := hasColumn(db, m.table, m.column)
			if err != nil {
				return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
			}
			if has {
				continue
			}
		}
		if _, err := db.Exec(m.stmt); err != nil {
			return fmt.Errorf("running migration %d (%s): %w", i+1, m.name, err)
		}
	}
	return nil
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return false, fmt.Errorf("inspecting %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}
