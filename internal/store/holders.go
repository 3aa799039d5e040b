package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/oprema/internal/model"
)

// ErrHolderHasItems is returned when deleting a holder that still holds live
// equipment.
var ErrHolderHasItems = errors.New("holder still has equipment")

func insertHolder(ctx context.Context, q DBTX, name, holderType string) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO holders (name, type) VALUES (?, ?)`,
		name, holderType,
	)
	if err != nil {
		return 0, fmt.Errorf("creating holder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting holder id: %w", err)
	}
	return id, nil
}

// CreateHolder creates a new holder (person or location).
func CreateHolder(ctx context.Context, q DBTX, name, holderType string) (*model.Holder, error) {
	id, err := insertHolder(ctx, q, name, holderType)
	if err != nil {
		return nil, err
	}
	return GetHolder(ctx, q, id)
}

// GetHolder returns a holder by ID.
func GetHolder(ctx context.Context, q DBTX, id int64) (*model.Holder, error) {
	h := &model.Holder{}
	err := q.QueryRowContext(ctx,
		`SELECT id, name, type, created_at, deleted_at
		 FROM holders WHERE id = ?`, id,
	).Scan(&h.ID, &h.Name, &h.Type, &h.CreatedAt, &h.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting holder: %w", err)
	}
	return h, nil
}

// ListHolders returns all non-deleted holders, optionally filtered by type.
func ListHolders(ctx context.Context, q DBTX, holderType string) ([]model.Holder, error) {
	var rows *sql.Rows
	var err error

	if holderType != "" {
		rows, err = q.QueryContext(ctx,
			`SELECT id, name, type, created_at, deleted_at
			 FROM holders WHERE deleted_at IS NULL AND type = ? ORDER BY name`, holderType,
		)
	} else {
		rows, err = q.QueryContext(ctx,
			`SELECT id, name, type, created_at, deleted_at
			 FROM holders WHERE deleted_at IS NULL ORDER BY name`,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("listing holders: %w", err)
	}
	defer rows.Close()

	var holders []model.Holder
	for rows.Next() {
		var h model.Holder
		if err := rows.Scan(&h.ID, &h.Name, &h.Type, &h.CreatedAt, &h.DeletedAt); err != nil {
			return nil, fmt.Errorf("scanning holder: %w", err)
		}
		holders = append(holders, h)
	}
	return holders, rows.Err()
}

// UpdateHolder updates a holder's name.
func UpdateHolder(ctx context.Context, q DBTX, id int64, name string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE holders SET name = ? WHERE id = ? AND deleted_at IS NULL`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("updating holder: %w", err)
	}
	return nil
}

// DeleteHolder soft-deletes a holder. Fails if the holder still has equipment.
func DeleteHolder(ctx context.Context, q DBTX, id int64) error {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE holder_id = ? AND status != 'removed'`, id,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking holder equipment: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("cannot delete holder with %d items: %w", count, ErrHolderHasItems)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE holders SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting holder: %w", err)
	}
	return nil
}
