package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/oprema/internal/barcode"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// RemovalResult reports the outcome of a removal request. Success is false
// when the item was already removed; no transaction is recorded then.
type RemovalResult struct {
	Success         bool   `json:"success"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message"`
	ItemID          int64  `json:"item_id,omitempty"`
	UUID            string `json:"uuid,omitempty"`
	WasInPrintQueue bool   `json:"was_in_print_queue"`
	TransactionID   int64  `json:"transaction_id,omitempty"`
}

// RemovalCheck is the pre-flight answer for a removal.
type RemovalCheck struct {
	Valid    bool        `json:"valid"`
	Code     string      `json:"code,omitempty"`
	Message  string      `json:"message"`
	Item     *model.Item `json:"item,omitempty"`
	Warnings []string    `json:"warnings"`
}

// ValidateRemoval reports whether an item can be removed without changing
// anything. Checked-out items are removable but produce a warning.
func (m *Manager) ValidateRemoval(ctx context.Context, id string) (*RemovalCheck, error) {
	id = barcode.Clean(id)
	if barcode.Classify(id) != barcode.KindUUID {
		return &RemovalCheck{Code: CodeInvalidBarcodeType, Message: "removal requires an equipment QR code", Warnings: []string{}}, nil
	}

	item, err := store.GetItemByUUID(ctx, m.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		e := notFound(id)
		return &RemovalCheck{Code: e.Code, Message: e.Message, Warnings: []string{}}, nil
	}

	check := &RemovalCheck{Item: item, Warnings: []string{}}
	if item.Status == model.ItemStatusRemoved {
		check.Code = CodeAlreadyRemoved
		check.Message = "item has already been removed from inventory"
		return check, nil
	}

	check.Valid = true
	check.Message = fmt.Sprintf("%s can be removed", item.ProductName)
	if item.Status == model.ItemStatusCheckedOut {
		check.Warnings = append(check.Warnings, fmt.Sprintf("item is checked out to %s", item.HolderName))
	}
	queued, err := store.IsLabelQueued(ctx, m.db, item.ID)
	if err != nil {
		return nil, err
	}
	if queued {
		check.Warnings = append(check.Warnings, "item's QR label is still waiting to be printed")
	}
	return check, nil
}

// RemoveRequest names the item to remove and why.
type RemoveRequest struct {
	UUID   string `json:"uuid"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// Remove moves an item to the terminal removed status. Removing an unknown
// UUID is an error; removing an already-removed item is not, but reports
// Success=false and records nothing.
func (m *Manager) Remove(ctx context.Context, req RemoveRequest, actor *int64) (*RemovalResult, error) {
	id := barcode.Clean(req.UUID)
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, newError(CodeInvalidRequest, "removal reason required")
	}

	var result *RemovalResult
	_, err := m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		item, err := store.GetItemByUUID(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if item == nil {
			return 0, notFound(id)
		}
		var txID int64
		result, txID, err = removeItem(ctx, tx, item, reason, req.Notes, actor)
		return txID, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveByUPC is the emergency removal path for equipment whose QR label was
// never printed. If every live item with this UPC already has a label, the
// label has to be scanned instead.
func (m *Manager) RemoveByUPC(ctx context.Context, upc, reason, notes string, actor *int64) (*RemovalResult, error) {
	upc = strings.TrimSpace(upc)
	if barcode.Classify(upc) != barcode.KindUPC {
		return nil, newError(CodeInvalidBarcodeType, "not a UPC barcode")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(CodeInvalidRequest, "removal reason required")
	}

	var result *RemovalResult
	_, err := m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		items, err := store.ListItems(ctx, tx, store.ItemFilter{UPC: upc})
		if err != nil {
			return 0, err
		}
		if len(items) == 0 {
			return 0, newError(CodeItemNotFound, fmt.Sprintf("no equipment with UPC %s exists", upc))
		}

		// Oldest unlabeled item first; items come back newest first.
		var target *model.Item
		for i := len(items) - 1; i >= 0; i-- {
			if !items[i].LabelPrinted {
				target = &items[i]
				break
			}
		}
		if target == nil {
			return 0, newError(CodeUPCWithQRExists, "equipment with this UPC has a QR label; scan the QR code instead")
		}

		var txID int64
		result, txID, err = removeItem(ctx, tx, target, reason, notes, actor)
		return txID, err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func removeItem(ctx context.Context, tx *sql.Tx, item *model.Item, reason, notes string, actor *int64) (*RemovalResult, int64, error) {
	already := &RemovalResult{
		Success: false,
		Code:    CodeAlreadyRemoved,
		Message: "item has already been removed from inventory",
		ItemID:  item.ID,
		UUID:    item.UUID,
	}
	if item.Status == model.ItemStatusRemoved {
		return already, 0, nil
	}

	ok, err := store.MarkItemRemoved(ctx, tx, item.ID, reason)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return already, 0, nil
	}

	wasQueued, err := store.DequeueLabel(ctx, tx, item.ID)
	if err != nil {
		return nil, 0, err
	}

	txNotes := reason
	if n := strings.TrimSpace(notes); n != "" {
		txNotes = reason + ": " + n
	}
	txID, err := store.InsertTransaction(ctx, tx, &model.Transaction{
		ItemID:       item.ID,
		Type:         model.TxRemoval,
		UserID:       actor,
		FromHolderID: item.HolderID,
		StatusBefore: item.Status,
		StatusAfter:  model.ItemStatusRemoved,
		Notes:        txNotes,
	})
	if err != nil {
		return nil, 0, err
	}

	return &RemovalResult{
		Success:         true,
		Message:         "item removed from inventory",
		ItemID:          item.ID,
		UUID:            item.UUID,
		WasInPrintQueue: wasQueued,
		TransactionID:   txID,
	}, txID, nil
}
