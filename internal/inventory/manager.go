// Package inventory is the single authority for equipment state. Every
// operation validates the item's current status and performs at most one
// transition, recording exactly one transaction when it succeeds.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/oprema/internal/barcode"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

// historyLimit caps the transactions returned with an item lookup.
const historyLimit = 20

// Publisher receives every committed transaction.
type Publisher interface {
	Publish(t model.Transaction)
}

// Manager performs inventory operations against the database.
type Manager struct {
	db  *sql.DB
	pub Publisher
}

// NewManager returns a Manager. pub may be nil.
func NewManager(db *sql.DB, pub Publisher) *Manager {
	return &Manager{db: db, pub: pub}
}

// mutate runs fn in a database transaction. fn returns the ID of the
// transaction row it recorded; after commit that row is published.
func (m *Manager) mutate(ctx context.Context, fn func(tx *sql.Tx) (int64, error)) (*model.Transaction, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	txID, err := fn(tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	if txID == 0 {
		return nil, nil
	}
	record, err := store.GetTransaction(ctx, m.db, txID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	logTransaction(record)
	if m.pub != nil {
		m.pub.Publish(*record)
	}
	return record, nil
}

// liveItem loads an item by UUID inside tx and rejects missing or removed items.
func liveItem(ctx context.Context, tx *sql.Tx, id string) (*model.Item, error) {
	item, err := store.GetItemByUUID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, notFound(id)
	}
	if item.Status == model.ItemStatusRemoved {
		return nil, newError(CodeAlreadyRemoved, "item has already been removed from inventory")
	}
	return item, nil
}

func notFound(id string) *Error {
	return newError(CodeItemNotFound, fmt.Sprintf("equipment item %s does not exist", id))
}

// IntakeRequest describes a new piece of equipment.
type IntakeRequest struct {
	ProductID  int64  `json:"product_id"`
	LocationID int64  `json:"location_id"`
	Condition  string `json:"condition"`
	Notes      string `json:"notes"`
}

// Intake registers a new item at a location, assigns it a UUID and queues its
// QR label for printing.
func (m *Manager) Intake(ctx context.Context, req IntakeRequest, actor *int64) (*model.Item, error) {
	if req.Condition != "" && !model.ValidCondition(req.Condition) {
		return nil, newError(CodeInvalidRequest, "invalid condition")
	}

	var itemID int64
	_, err := m.mutate(ctx, func(tx *sql.Tx) (int64, error) {
		product, err := store.GetProduct(ctx, tx, req.ProductID)
		if err != nil {
			return 0, err
		}
		if product == nil || product.DeletedAt != nil {
			return 0, newError(CodeInvalidRequest, "product does not exist")
		}
		loc, err := location(ctx, tx, req.LocationID)
		if err != nil {
			return 0, err
		}

		itemID, err = store.CreateItem(ctx, tx, store.NewItem{
			UUID:      uuid.NewString(),
			UPC:       product.UPC,
			ProductID: product.ID,
			HolderID:  &loc.ID,
			Condition: req.Condition,
			Notes:     req.Notes,
		})
		if err != nil {
			return 0, err
		}
		if err := store.EnqueueLabel(ctx, tx, itemID); err != nil {
			return 0, err
		}

		return store.InsertTransaction(ctx, tx, &model.Transaction{
			ItemID:      itemID,
			Type:        model.TxIntake,
			UserID:      actor,
			ToHolderID:  &loc.ID,
			StatusAfter: model.ItemStatusAvailable,
			Notes:       req.Notes,
		})
	})
	if err != nil {
		return nil, err
	}

	return store.GetItem(ctx, m.db, itemID)
}

func location(ctx context.Context, q store.DBTX, id int64) (*model.Holder, error) {
	h, err := store.GetHolder(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if h == nil || h.DeletedAt != nil || h.Type != model.HolderTypeLocation {
		return nil, newError(CodeInvalidHolder, "location does not exist")
	}
	return h, nil
}

// Lookup returns an item with its product, holder and recent history.
func (m *Manager) Lookup(ctx context.Context, id string) (*model.ItemDetail, error) {
	item, err := store.GetItemByUUID(ctx, m.db, barcode.Clean(id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, notFound(id)
	}
	return m.detail(ctx, item)
}

func (m *Manager) detail(ctx context.Context, item *model.Item) (*model.ItemDetail, error) {
	d := &model.ItemDetail{Item: *item}

	product, err := store.GetProduct(ctx, m.db, item.ProductID)
	if err != nil {
		return nil, err
	}
	d.Product = product

	if item.HolderID != nil {
		holder, err := store.GetHolder(ctx, m.db, *item.HolderID)
		if err != nil {
			return nil, err
		}
		d.Holder = holder
	}

	d.Transactions, err = store.ListTransactions(ctx, m.db, store.TransactionFilter{ItemID: item.ID, Limit: historyLimit})
	if err != nil {
		return nil, err
	}
	if d.Transactions == nil {
		d.Transactions = []model.Transaction{}
	}

	d.InPrintQueue, err = store.IsLabelQueued(ctx, m.db, item.ID)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// UPCMatch is what a manufacturer barcode resolves to.
type UPCMatch struct {
	UPC     string         `json:"upc"`
	Product *model.Product `json:"product,omitempty"`
	Items   []model.Item   `json:"items"`
}

// LookupUPC returns the product and live items carrying a manufacturer UPC.
func (m *Manager) LookupUPC(ctx context.Context, upc string) (*UPCMatch, error) {
	upc = strings.TrimSpace(upc)
	product, err := store.GetProductByUPC(ctx, m.db, upc)
	if err != nil {
		return nil, err
	}
	items, err := store.ListItems(ctx, m.db, store.ItemFilter{UPC: upc})
	if err != nil {
		return nil, err
	}
	if product == nil && len(items) == 0 {
		return nil, newError(CodeItemNotFound, fmt.Sprintf("no equipment with UPC %s exists", upc))
	}
	if items == nil {
		items = []model.Item{}
	}
	return &UPCMatch{UPC: upc, Product: product, Items: items}, nil
}

// History returns every transaction recorded for an item, newest first.
func (m *Manager) History(ctx context.Context, id string) ([]model.Transaction, error) {
	item, err := store.GetItemByUUID(ctx, m.db, barcode.Clean(id))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, notFound(id)
	}
	history, err := store.ListTransactions(ctx, m.db, store.TransactionFilter{ItemID: item.ID})
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.Transaction{}
	}
	return history, nil
}

func logTransaction(t *model.Transaction) {
	slog.Info("inventory transaction", "type", t.Type, "uuid", t.ItemUUID,
		"user", t.Username, "from", t.FromHolderName, "to", t.ToHolderName)
}
