package client

import (
	"context"

	"github.com/erazemk/oprema/internal/inventory"
	"github.com/erazemk/oprema/internal/model"
)

// Web-service method names.
const (
	MethodLookupEquipment = "local_equipment_lookup_equipment"
	MethodValidateRemoval = "local_equipment_validate_removal"
	MethodProcessScan     = "local_equipment_process_scan"
)

type serviceCall struct {
	MethodName string      `json:"methodname"`
	Args       serviceArgs `json:"args"`
}

type serviceArgs struct {
	UUID string `json:"uuid,omitempty"`
	Code string `json:"code,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, args serviceArgs, target any) error {
	return c.postJSON(ctx, "/api/service", serviceCall{MethodName: method, Args: args}, target)
}

// Lookup fetches an item with its product, holder and history.
func (c *Client) Lookup(ctx context.Context, uuid string) (*model.ItemDetail, error) {
	var detail model.ItemDetail
	if err := c.call(ctx, MethodLookupEquipment, serviceArgs{UUID: uuid}, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ProcessScan resolves decoded scan text on the server.
func (c *Client) ProcessScan(ctx context.Context, code string) (*inventory.ScanResult, error) {
	var res inventory.ScanResult
	if err := c.call(ctx, MethodProcessScan, serviceArgs{Code: code}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ValidateRemoval asks whether uuid can be removed and what to warn about.
func (c *Client) ValidateRemoval(ctx context.Context, uuid string) (*inventory.RemovalCheck, error) {
	var check inventory.RemovalCheck
	if err := c.call(ctx, MethodValidateRemoval, serviceArgs{UUID: uuid}, &check); err != nil {
		return nil, err
	}
	return &check, nil
}
