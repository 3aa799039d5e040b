package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/oprema/internal/model"
)

const itemSelect = `SELECT i.id, i.uuid, i.upc, i.product_id, i.status, i.condition, i.holder_id,
        i.notes, i.removal_reason, i.label_printed, i.created_at, i.updated_at,
        p.name, COALESCE(h.name, ''), COALESCE(h.type, '')
 FROM items i
 JOIN products p ON p.id = i.product_id
 LEFT JOIN holders h ON h.id = i.holder_id`

func scanItem(row interface{ Scan(...any) error }, item *model.Item) error {
	var upc, notes, reason sql.NullString
	if err := row.Scan(&item.ID, &item.UUID, &upc, &item.ProductID, &item.Status, &item.Condition, &item.HolderID,
		&notes, &reason, &item.LabelPrinted, &item.CreatedAt, &item.UpdatedAt,
		&item.ProductName, &item.HolderName, &item.HolderType); err != nil {
		return err
	}
	item.UPC = upc.String
	item.Notes = notes.String
	item.RemovalReason = reason.String
	return nil
}

// NewItem holds the columns set at intake.
type NewItem struct {
	UUID      string
	UPC       string
	ProductID int64
	HolderID  *int64
	Condition string
	Notes     string
}

// CreateItem inserts a new item and returns its row ID.
func CreateItem(ctx context.Context, q DBTX, n NewItem) (int64, error) {
	condition := n.Condition
	if condition == "" {
		condition = model.ConditionGood
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO items (uuid, upc, product_id, holder_id, condition, notes) VALUES (?, ?, ?, ?, ?, ?)`,
		n.UUID, nullString(n.UPC), n.ProductID, n.HolderID, condition, nullString(n.Notes),
	)
	if err != nil {
		return 0, fmt.Errorf("creating item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting item id: %w", err)
	}
	return id, nil
}

// GetItem returns an item by row ID.
func GetItem(ctx context.Context, q DBTX, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetItemByUUID returns an item by its label UUID, matched case-insensitively.
func GetItemByUUID(ctx context.Context, q DBTX, uuid string) (*model.Item, error) {
	item := &model.Item{}
	err := scanItem(q.QueryRowContext(ctx, itemSelect+` WHERE i.uuid = lower(?)`, uuid), item)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item by uuid: %w", err)
	}
	return item, nil
}

// ItemFilter narrows ListItems. Zero values mean "any".
type ItemFilter struct {
	Status    string
	HolderID  int64
	ProductID int64
	UPC       string
	// IncludeRemoved also returns removed items.
	IncludeRemoved bool
}

// ListItems returns items matching the filter, newest first.
func ListItems(ctx context.Context, q DBTX, f ItemFilter) ([]model.Item, error) {
	query := itemSelect + ` WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND i.status = ?`
		args = append(args, f.Status)
	} else if !f.IncludeRemoved {
		query += ` AND i.status != 'removed'`
	}
	if f.HolderID > 0 {
		query += ` AND i.holder_id = ?`
		args = append(args, f.HolderID)
	}
	if f.ProductID > 0 {
		query += ` AND i.product_id = ?`
		args = append(args, f.ProductID)
	}
	if f.UPC != "" {
		query += ` AND (i.upc = ? OR p.upc = ?)`
		args = append(args, f.UPC, f.UPC)
	}
	query += ` ORDER BY i.created_at DESC, i.id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := scanItem(rows, &item); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetItemState moves a live item to a new status and holder. It reports false
// if the item was already removed, in which case nothing changed.
func SetItemState(ctx context.Context, q DBTX, id int64, status string, holderID *int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET status = ?, holder_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'removed'`,
		status, holderID, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating item state: %w", err)
	}
	return affectedOne(result)
}

// MarkItemRemoved moves a live item to the terminal removed status. It reports
// false if another request removed it first.
func MarkItemRemoved(ctx context.Context, q DBTX, id int64, reason string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET status = 'removed', removal_reason = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'removed'`,
		reason, id,
	)
	if err != nil {
		return false, fmt.Errorf("removing item: %w", err)
	}
	return affectedOne(result)
}

// SetItemNotes replaces the free-text notes of a live item.
func SetItemNotes(ctx context.Context, q DBTX, id int64, notes string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET notes = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'removed'`,
		nullString(notes), id,
	)
	if err != nil {
		return false, fmt.Errorf("updating item notes: %w", err)
	}
	return affectedOne(result)
}

// SetItemCondition updates the physical condition of a live item.
func SetItemCondition(ctx context.Context, q DBTX, id int64, condition string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE items SET condition = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status != 'removed'`,
		condition, id,
	)
	if err != nil {
		return false, fmt.Errorf("updating item condition: %w", err)
	}
	return affectedOne(result)
}

func affectedOne(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking affected rows: %w", err)
	}
	return n == 1, nil
}
