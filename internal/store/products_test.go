package store

import (
	"context"
	"testing"

	"github.com/erazemk/oprema/internal/db"
)

func TestProductByUPC(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	created, err := CreateProduct(ctx, database, "Calculator", "TI-84", "math", "033317198689")
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	got, err := GetProductByUPC(ctx, database, "033317198689")
	if err != nil {
		t.Fatalf("GetProductByUPC: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("expected product %d, got %v", created.ID, got)
	}

	if _, err := CreateProduct(ctx, database, "Copy", "", "", "033317198689"); err == nil {
		t.Error("expected duplicate active upc to be rejected")
	}

	// Products without a UPC do not collide.
	if _, err := CreateProduct(ctx, database, "Cable", "", "", ""); err != nil {
		t.Errorf("CreateProduct without upc: %v", err)
	}
	if _, err := CreateProduct(ctx, database, "Charger", "", "", ""); err != nil {
		t.Errorf("second CreateProduct without upc: %v", err)
	}
}

func TestDeleteProductInUse(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	product, _, _ := seedItem(t, ctx, database, "0b5d2c8e-3f8a-4c55-9d8e-2a1b3c4d5e6f", "")
	if err := DeleteProduct(ctx, database, product.ID); err == nil {
		t.Error("expected error deleting product with live items")
	}
}
