package inventory

import "errors"

// Error codes returned to scan stations.
const (
	CodeItemNotFound       = "item_not_found"
	CodeAlreadyRemoved     = "already_removed"
	CodeUPCWithQRExists    = "upc_with_qr_exists"
	CodeItemCheckedOut     = "item_checked_out"
	CodeInvalidBarcodeType = "invalid_barcode_type"
	CodeInvalidHolder      = "invalid_holder"
	CodeInvalidRequest     = "invalid_request"
)

// Error is a domain failure with a stable code. Nothing was changed when one
// is returned.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// CodeOf returns the code of an *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
