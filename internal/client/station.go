package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/erazemk/oprema/internal/barcode"
	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/scanner"
)

// ErrNoItem is returned by item actions before any item has been scanned.
var ErrNoItem = errors.New("no item selected")

// Station is one scanning desk: a camera session, an API client and the item
// currently on screen.
type Station struct {
	client  *Client
	session *scanner.Session

	mu      sync.Mutex
	current *model.ItemDetail
	removed []string
}

// NewStation ties session to c. session may be nil when codes are typed in.
func NewStation(c *Client, session *scanner.Session) *Station {
	return &Station{client: c, session: session}
}

// Client returns the station's API client.
func (st *Station) Client() *Client {
	return st.client
}

// ScanNext reads one code from the camera and resolves it.
func (st *Station) ScanNext(ctx context.Context) (*inventory.ScanResult, error) {
	if st.session == nil {
		return nil, scanner.ErrNotActive
	}
	det, err := st.session.Scan(ctx)
	if err != nil {
		return nil, err
	}
	return st.HandleCode(ctx, det.Text)
}

// HandleCode resolves decoded text. Codes that are neither a UUID nor a UPC
// are rejected without contacting the server.
func (st *Station) HandleCode(ctx context.Context, text string) (*inventory.ScanResult, error) {
	code := barcode.Clean(text)
	if barcode.Classify(code) == barcode.KindUnknown {
		return nil, &ActionError{
			Code:    inventory.CodeInvalidBarcodeType,
			Message: fmt.Sprintf("%q is not an equipment QR code or UPC", code),
			Status:  http.StatusBadRequest,
		}
	}

	res, err := st.client.ProcessScan(ctx, code)
	if err != nil {
		return nil, err
	}
	if res.Detail != nil {
		st.setCurrent(res.Detail)
	}
	return res, nil
}

// Current returns the item on screen, or nil.
func (st *Station) Current() *model.ItemDetail {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Removed lists the UUIDs removed during this session, oldest first.
func (st *Station) Removed() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]string(nil), st.removed...)
}

func (st *Station) setCurrent(d *model.ItemDetail) {
	st.mu.Lock()
	st.current = d
	st.mu.Unlock()
}

func (st *Station) currentUUID() (string, error) {
	cur := st.Current()
	if cur == nil {
		return "", ErrNoItem
	}
	return cur.Item.UUID, nil
}

// act runs an item action on the current item and replaces it with the
// server's answer.
func (st *Station) act(ctx context.Context, fn func(uuid string) (*model.ItemDetail, error)) (*model.ItemDetail, error) {
	uuid, err := st.currentUUID()
	if err != nil {
		return nil, err
	}
	detail, err := fn(uuid)
	if err != nil {
		return nil, err
	}
	st.setCurrent(detail)
	return detail, nil
}

// Assign checks the current item out to a user.
func (st *Station) Assign(ctx context.Context, userID int64) (*model.ItemDetail, error) {
	return st.act(ctx, func(uuid string) (*model.ItemDetail, error) {
		return st.client.Assign(ctx, uuid, userID)
	})
}

// Transfer moves the current item to a location.
func (st *Station) Transfer(ctx context.Context, locationID int64) (*model.ItemDetail, error) {
	return st.act(ctx, func(uuid string) (*model.ItemDetail, error) {
		return st.client.Transfer(ctx, uuid, locationID)
	})
}

// Unassign checks the current item back in.
func (st *Station) Unassign(ctx context.Context) (*model.ItemDetail, error) {
	return st.act(ctx, func(uuid string) (*model.ItemDetail, error) {
		return st.client.Unassign(ctx, uuid)
	})
}

// SaveNotes replaces the current item's notes.
func (st *Station) SaveNotes(ctx context.Context, notes string) (*model.ItemDetail, error) {
	return st.act(ctx, func(uuid string) (*model.ItemDetail, error) {
		return st.client.SaveNotes(ctx, uuid, notes)
	})
}

// Remove removes the current item and refreshes it from the server.
func (st *Station) Remove(ctx context.Context, reason, notes string) (*inventory.RemovalResult, error) {
	uuid, err := st.currentUUID()
	if err != nil {
		return nil, err
	}
	res, err := st.client.Remove(ctx, uuid, reason, notes)
	if err != nil {
		return res, err
	}

	st.mu.Lock()
	st.removed = append(st.removed, uuid)
	st.mu.Unlock()

	if detail, err := st.client.Lookup(ctx, uuid); err != nil {
		slog.Warn("refreshing removed item failed", "uuid", uuid, "error", err)
	} else {
		st.setCurrent(detail)
	}
	return res, nil
}
