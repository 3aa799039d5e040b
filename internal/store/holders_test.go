package store

import (
	"context"
	"testing"

	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/model"
)

func TestCreateAndListHolders(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateHolder(ctx, database, "Room 101", model.HolderTypeLocation)
	CreateHolder(ctx, database, "Cart A", model.HolderTypeLocation)
	CreateHolder(ctx, database, "Alice", model.HolderTypePerson)

	all, _ := ListHolders(ctx, database, "")
	if len(all) != 3 {
		t.Errorf("expected 3 holders, got %d", len(all))
	}
	locations, _ := ListHolders(ctx, database, model.HolderTypeLocation)
	if len(locations) != 2 {
		t.Errorf("expected 2 locations, got %d", len(locations))
	}
	if locations[0].Name != "Cart A" {
		t.Errorf("expected locations sorted by name, got %q first", locations[0].Name)
	}
}

func TestDeleteHolderWithEquipmentFails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	_, loc, id := seedItem(t, ctx, database, "0b5d2c8e-3f8a-4c55-9d8e-2a1b3c4d5e6f", "")

	if err := DeleteHolder(ctx, database, loc.ID); err == nil {
		t.Error("expected error deleting holder with equipment")
	}

	// Removed equipment no longer pins the holder.
	MarkItemRemoved(ctx, database, id, "lost")
	if err := DeleteHolder(ctx, database, loc.ID); err != nil {
		t.Errorf("DeleteHolder after removal: %v", err)
	}
}
