package inventory

import (
	"context"

	"github.com/erazemk/oprema/internal/barcode"
	"github.com/erazemk/oprema/internal/model"
)

// ScanResult is what a decoded code resolved to.
type ScanResult struct {
	Kind   barcode.Kind      `json:"kind"`
	Code   string            `json:"code"`
	Detail *model.ItemDetail `json:"detail,omitempty"`
	UPC    *UPCMatch         `json:"upc_match,omitempty"`
}

// ProcessScan classifies a decoded code and resolves it: a UUID to its item,
// a UPC to its product and items. Anything else is rejected.
func (m *Manager) ProcessScan(ctx context.Context, code string) (*ScanResult, error) {
	code = barcode.Clean(code)
	res := &ScanResult{Kind: barcode.Classify(code), Code: code}

	switch res.Kind {
	case barcode.KindUUID:
		detail, err := m.Lookup(ctx, code)
		if err != nil {
			return nil, err
		}
		res.Detail = detail
	case barcode.KindUPC:
		match, err := m.LookupUPC(ctx, code)
		if err != nil {
			return nil, err
		}
		res.UPC = match
	default:
		return nil, newError(CodeInvalidBarcodeType, "unrecognised barcode: expected an equipment QR code or a UPC")
	}
	return res, nil
}
