package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// Assign checks an item out to a user.
func (m *Manager) Assign(ctx context.Context, id string, userID int64, actor *int64) (*model.Transaction, error) {
	return m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		item, err := liveItem(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		user, err := store.GetUser(ctx, tx, userID)
		if err != nil {
			return 0, err
		}
		if user == nil || user.DeletedAt != nil || user.HolderID == nil {
			return 0, newError(CodeInvalidHolder, "user does not exist")
		}

		switch item.Status {
		case model.ItemStatusCheckedOut:
			if item.HolderID != nil && *item.HolderID == *user.HolderID {
				return 0, newError(CodeInvalidRequest, "item is already assigned to this user")
			}
			return 0, newError(CodeItemCheckedOut, fmt.Sprintf("item is checked out to %s", item.HolderName))
		case model.ItemStatusAvailable, model.ItemStatusInTransit:
		default:
			return 0, newError(CodeInvalidRequest, fmt.Sprintf("item in status %s cannot be assigned", item.Status))
		}

		if ok, err := store.SetItemState(ctx, tx, item.ID, model.ItemStatusCheckedOut, user.HolderID); err != nil || !ok {
			return 0, stateErr(err)
		}
		return store.InsertTransaction(ctx, tx, &model.Transaction{
			ItemID:       item.ID,
			Type:         model.TxAssignment,
			UserID:       actor,
			FromHolderID: item.HolderID,
			ToHolderID:   user.HolderID,
			StatusBefore: item.Status,
			StatusAfter:  model.ItemStatusCheckedOut,
		})
	})
}

// Transfer moves an item to a location. A checked-out item is checked in.
func (m *Manager) Transfer(ctx context.Context, id string, locationID int64, actor *int64) (*model.Transaction, error) {
	return m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		item, err := liveItem(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		loc, err := location(ctx, tx, locationID)
		if err != nil {
			return 0, err
		}
		if item.HolderID != nil && *item.HolderID == loc.ID && item.Status == model.ItemStatusAvailable {
			return 0, newError(CodeInvalidRequest, fmt.Sprintf("item is already at %s", loc.Name))
		}

		if ok, err := store.SetItemState(ctx, tx, item.ID, model.ItemStatusAvailable, &loc.ID); err != nil || !ok {
			return 0, stateErr(err)
		}
		return store.InsertTransaction(ctx, tx, &model.Transaction{
			ItemID:       item.ID,
			Type:         model.TxTransfer,
			UserID:       actor,
			FromHolderID: item.HolderID,
			ToHolderID:   &loc.ID,
			StatusBefore: item.Status,
			StatusAfter:  model.ItemStatusAvailable,
		})
	})
}

// Unassign returns a checked-out item. It goes back to the location it was
// assigned from, or to no holder if that is unknown.
func (m *Manager) Unassign(ctx context.Context, id string, actor *int64) (*model.Transaction, error) {
	return m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		item, err := liveItem(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if item.Status != model.ItemStatusCheckedOut || item.HolderType != model.HolderTypePerson {
			return 0, newError(CodeInvalidRequest, "item is not assigned to anyone")
		}

		var returnTo *int64
		last, err := store.ListTransactions(ctx, tx, store.TransactionFilter{ItemID: item.ID, Type: model.TxAssignment, Limit: 1})
		if err != nil {
			return 0, err
		}
		if len(last) == 1 && last[0].FromHolderID != nil {
			if h, err := store.GetHolder(ctx, tx, *last[0].FromHolderID); err != nil {
				return 0, err
			} else if h != nil && h.DeletedAt == nil && h.Type == model.HolderTypeLocation {
				returnTo = &h.ID
			}
		}

		if ok, err := store.SetItemState(ctx, tx, item.ID, model.ItemStatusAvailable, returnTo); err != nil || !ok {
			return 0, stateErr(err)
		}
		return store.InsertTransaction(ctx, tx, &model.Transaction{
			ItemID:       item.ID,
			Type:         model.TxUnassignment,
			UserID:       actor,
			FromHolderID: item.HolderID,
			ToHolderID:   returnTo,
			StatusBefore: item.Status,
			StatusAfter:  model.ItemStatusAvailable,
		})
	})
}

// SetStatus moves an item between the non-lending statuses (maintenance,
// damaged, in transit) and back to available.
func (m *Manager) SetStatus(ctx context.Context, id, status, notes string, actor *int64) (*model.Transaction, error) {
	switch status {
	case model.ItemStatusAvailable, model.ItemStatusMaintenance, model.ItemStatusDamaged, model.ItemStatusInTransit:
	case model.ItemStatusRemoved:
		return nil, newError(CodeInvalidRequest, "use removal to remove an item")
	case model.ItemStatusCheckedOut:
		return nil, newError(CodeInvalidRequest, "use assignment to check an item out")
	default:
		return nil, newError(CodeInvalidRequest, "invalid status")
	}

	return m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		item, err := liveItem(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if item.Status == status {
			return 0, newError(CodeInvalidRequest, fmt.Sprintf("item is already %s", status))
		}
		if item.Status == model.ItemStatusCheckedOut {
			return 0, newError(CodeItemCheckedOut, fmt.Sprintf("item is checked out to %s", item.HolderName))
		}

		if ok, err := store.SetItemState(ctx, tx, item.ID, status, item.HolderID); err != nil || !ok {
			return 0, stateErr(err)
		}
		return store.InsertTransaction(ctx, tx, &model.Transaction{
			ItemID:       item.ID,
			Type:         model.TxStatusChange,
			UserID:       actor,
			FromHolderID: item.HolderID,
			ToHolderID:   item.HolderID,
			StatusBefore: item.Status,
			StatusAfter:  status,
			Notes:        notes,
		})
	})
}

// SaveNotes replaces an item's free-text notes.
func (m *Manager) SaveNotes(ctx context.Context, id, notes string, actor *int64) (*model.Transaction, error) {
	notes = strings.TrimSpace(notes)
	return m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		item, err := liveItem(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if item.Notes == notes {
			return 0, newError(CodeInvalidRequest, "notes are unchanged")
		}

		if ok, err := store.SetItemNotes(ctx, tx, item.ID, notes); err != nil || !ok {
			return 0, stateErr(err)
		}
		return store.InsertTransaction(ctx, tx, &model.Transaction{
			ItemID:       item.ID,
			Type:         model.TxNotes,
			UserID:       actor,
			StatusBefore: item.Status,
			StatusAfter:  item.Status,
			Notes:        notes,
		})
	})
}

// stateErr turns a refused conditional update into the removed-item error.
func stateErr(err error) error {
	if err != nil {
		return err
	}
	return newError(CodeAlreadyRemoved, "item has already been removed from inventory")
}
