package model

import "time"

// Item is a single tracked piece of equipment.
type Item struct {
	ID            int64     `json:"id"`
	UUID          string    `json:"uuid"`
	UPC           string    `json:"upc,omitempty"`
	ProductID     int64     `json:"product_id"`
	Status        string    `json:"status"`
	Condition     string    `json:"condition"`
	HolderID      *int64    `json:"holder_id,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	RemovalReason string    `json:"removal_reason,omitempty"`
	LabelPrinted  bool      `json:"label_printed"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ProductName string `json:"product_name,omitempty"`
	HolderName  string `json:"holder_name,omitempty"`
	HolderType  string `json:"holder_type,omitempty"`
}

// Item statuses.
const (
	ItemStatusAvailable   = "available"
	ItemStatusCheckedOut  = "checked_out"
	ItemStatusInTransit   = "in_transit"
	ItemStatusMaintenance = "maintenance"
	ItemStatusDamaged     = "damaged"
	ItemStatusRemoved     = "removed"
)

// Item conditions.
const (
	ConditionNew  = "new"
	ConditionGood = "good"
	ConditionFair = "fair"
	ConditionPoor = "poor"
)

// ValidItemStatus reports whether status is a known item status.
func ValidItemStatus(status string) bool {
	switch status {
	case ItemStatusAvailable, ItemStatusCheckedOut, ItemStatusInTransit,
		ItemStatusMaintenance, ItemStatusDamaged, ItemStatusRemoved:
		return true
	}
	return false
}

// ValidCondition reports whether condition is a known item condition.
func ValidCondition(condition string) bool {
	switch condition {
	case ConditionNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// ItemDetail is an item together with everything a scan station shows about it.
type ItemDetail struct {
	Item         Item          `json:"item"`
	Product      *Product      `json:"product,omitempty"`
	Holder       *Holder       `json:"holder,omitempty"`
	Transactions []Transaction `json:"transactions"`
	InPrintQueue bool          `json:"in_print_queue"`
}
