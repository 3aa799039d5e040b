package model

import "time"

// Transaction is an immutable record of one state change on one item.
type Transaction struct {
	ID           int64     `json:"id"`
	ItemID       int64     `json:"item_id"`
	Type         string    `json:"type"`
	UserID       *int64    `json:"user_id,omitempty"`
	FromHolderID *int64    `json:"from_holder_id,omitempty"`
	ToHolderID   *int64    `json:"to_holder_id,omitempty"`
	StatusBefore string    `json:"status_before,omitempty"`
	StatusAfter  string    `json:"status_after,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Joined fields (not always populated).
	ItemUUID       string `json:"item_uuid,omitempty"`
	Username       string `json:"username,omitempty"`
	FromHolderName string `json:"from_holder_name,omitempty"`
	ToHolderName   string `json:"to_holder_name,omitempty"`
}

// Transaction types.
const (
	TxIntake       = "intake"
	TxAssignment   = "assignment"
	TxUnassignment = "unassignment"
	TxTransfer     = "transfer"
	TxStatusChange = "status_change"
	TxNotes        = "notes"
	TxRemoval      = "removal"
)

// PrintJob is an item whose QR label has not been printed yet.
type PrintJob struct {
	ItemID      int64     `json:"item_id"`
	UUID        string    `json:"uuid"`
	ProductName string    `json:"product_name"`
	QueuedAt    time.Time `json:"queued_at"`
}
