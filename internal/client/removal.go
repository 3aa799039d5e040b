package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/erazemk/oprema/internal/barcode"
	"github.com/erazemk/oprema/internal/inventory"
)

type removeRequest struct {
	UPC    string `json:"upc,omitempty"`
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

// Remove takes an item out of inventory. A repeated removal comes back as an
// *ActionError with code already_removed alongside the server's result.
func (c *Client) Remove(ctx context.Context, uuid, reason, notes string) (*inventory.RemovalResult, error) {
	uuid = barcode.Clean(uuid)
	release, err := c.guard("remove:" + uuid)
	if err != nil {
		return nil, err
	}
	defer release()

	var res inventory.RemovalResult
	path := "/api/equipment/" + url.PathEscape(uuid) + "/remove"
	if err := c.postJSON(ctx, path, removeRequest{Reason: reason, Notes: notes}, &res); err != nil {
		return nil, err
	}
	return removalOutcome(&res)
}

// RemoveByUPC removes the oldest unlabeled item carrying upc.
func (c *Client) RemoveByUPC(ctx context.Context, upc, reason, notes string) (*inventory.RemovalResult, error) {
	upc = barcode.Clean(upc)
	release, err := c.guard("remove-upc:" + upc)
	if err != nil {
		return nil, err
	}
	defer release()

	var res inventory.RemovalResult
	if err := c.postJSON(ctx, "/api/equipment/remove-by-upc", removeRequest{UPC: upc, Reason: reason, Notes: notes}, &res); err != nil {
		return nil, err
	}
	return removalOutcome(&res)
}

func removalOutcome(res *inventory.RemovalResult) (*inventory.RemovalResult, error) {
	if res.Success {
		return res, nil
	}
	code := res.Code
	if code == "" {
		code = inventory.CodeAlreadyRemoved
	}
	return res, &ActionError{Code: code, Message: res.Message, Status: http.StatusOK}
}
