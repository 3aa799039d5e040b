package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/oprema/internal/model"
)

// EnqueueLabel queues an item's QR label for printing.
func EnqueueLabel(ctx context.Context, q DBTX, itemID int64) error {
	_, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO print_queue (item_id) VALUES (?)`, itemID,
	)
	if err != nil {
		return fmt.Errorf("queueing label: %w", err)
	}
	return nil
}

// DequeueLabel drops an item from the print queue and reports whether it was queued.
func DequeueLabel(ctx context.Context, q DBTX, itemID int64) (bool, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM print_queue WHERE item_id = ?`, itemID,
	)
	if err != nil {
		return false, fmt.Errorf("dequeueing label: %w", err)
	}
	return affectedOne(result)
}

// IsLabelQueued reports whether an item is waiting for its label.
func IsLabelQueued(ctx context.Context, q DBTX, itemID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM print_queue WHERE item_id = ?`, itemID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking print queue: %w", err)
	}
	return count > 0, nil
}

// ListPrintQueue returns queued labels, oldest first.
func ListPrintQueue(ctx context.Context, q DBTX) ([]model.PrintJob, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT pq.item_id, i.uuid, p.name, pq.queued_at
		 FROM print_queue pq
		 JOIN items i ON i.id = pq.item_id
		 JOIN products p ON p.id = i.product_id
		 ORDER BY pq.queued_at, pq.item_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing print queue: %w", err)
	}
	defer rows.Close()

	var jobs []model.PrintJob
	for rows.Next() {
		var j model.PrintJob
		if err := rows.Scan(&j.ItemID, &j.UUID, &j.ProductName, &j.QueuedAt); err != nil {
			return nil, fmt.Errorf("scanning print job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// MarkLabelsPrinted removes the given items from the queue and flags their
// labels as printed, all or nothing. It returns how many were marked.
func MarkLabelsPrinted(ctx context.Context, db *sql.DB, itemIDs []int64) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	marked := 0
	for _, id := range itemIDs {
		removed, err := DequeueLabel(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if !removed {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET label_printed = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
		); err != nil {
			return 0, fmt.Errorf("marking label printed: %w", err)
		}
		marked++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing printed labels: %w", err)
	}
	return marked, nil
}
