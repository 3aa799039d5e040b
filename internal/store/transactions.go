package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/oprema/internal/model"
)

const transactionSelect = `SELECT t.id, t.item_id, t.type, t.user_id, t.from_holder_id, t.to_holder_id,
        t.status_before, t.status_after, t.notes, t.created_at,
        i.uuid, COALESCE(u.username, ''), COALESCE(fh.name, ''), COALESCE(th.name, '')
 FROM transactions t
 JOIN items i ON i.id = t.item_id
 LEFT JOIN users u ON u.id = t.user_id
 LEFT JOIN holders fh ON fh.id = t.from_holder_id
 LEFT JOIN holders th ON th.id = t.to_holder_id`

// InsertTransaction records one state change. It is only called inside the
// database transaction that made the change.
func InsertTransaction(ctx context.Context, q DBTX, t *model.Transaction) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO transactions (item_id, type, user_id, from_holder_id, to_holder_id, status_before, status_after, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ItemID, t.Type, t.UserID, t.FromHolderID, t.ToHolderID,
		nullString(t.StatusBefore), nullString(t.StatusAfter), nullString(t.Notes),
	)
	if err != nil {
		return 0, fmt.Errorf("recording transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting transaction id: %w", err)
	}
	return id, nil
}

// GetTransaction returns a transaction by ID.
func GetTransaction(ctx context.Context, q DBTX, id int64) (*model.Transaction, error) {
	t := &model.Transaction{}
	err := scanTransaction(q.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id), t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting transaction: %w", err)
	}
	return t, nil
}

// TransactionFilter narrows ListTransactions. Zero values mean "any".
type TransactionFilter struct {
	ItemID int64
	UserID int64
	Type   string
	Limit  int
}

// ListTransactions returns transactions matching the filter, newest first.
func ListTransactions(ctx context.Context, q DBTX, f TransactionFilter) ([]model.Transaction, error) {
	query := transactionSelect + ` WHERE 1=1`
	var args []any

	if f.ItemID > 0 {
		query += ` AND t.item_id = ?`
		args = append(args, f.ItemID)
	}
	if f.UserID > 0 {
		query += ` AND t.user_id = ?`
		args = append(args, f.UserID)
	}
	if f.Type != "" {
		query += ` AND t.type = ?`
		args = append(args, f.Type)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		var t model.Transaction
		if err := scanTransaction(rows, &t); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// CountTransactions returns how many transactions of the given type exist for
// an item. An empty type counts all of them.
func CountTransactions(ctx context.Context, q DBTX, itemID int64, txType string) (int, error) {
	var count int
	var err error
	if txType == "" {
		err = q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE item_id = ?`, itemID,
		).Scan(&count)
	} else {
		err = q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM transactions WHERE item_id = ? AND type = ?`, itemID, txType,
		).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return count, nil
}

func scanTransaction(row interface{ Scan(...any) error }, t *model.Transaction) error {
	var before, after, notes sql.NullString
	if err := row.Scan(&t.ID, &t.ItemID, &t.Type, &t.UserID, &t.FromHolderID, &t.ToHolderID,
		&before, &after, &notes, &t.CreatedAt,
		&t.ItemUUID, &t.Username, &t.FromHolderName, &t.ToHolderName); err != nil {
		return err
	}
	t.StatusBefore = before.String
	t.StatusAfter = after.String
	t.Notes = notes.String
	return nil
}
