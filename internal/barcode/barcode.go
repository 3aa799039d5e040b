// Package barcode classifies decoded scan text.
package barcode

import (
	"regexp"
	"strings"
)

// Kind is the classification of a scanned code.
type Kind string

// Kinds.
const (
	KindUUID    Kind = "uuid"
	KindUPC     Kind = "upc"
	KindUnknown Kind = "unknown"
)

var (
	uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	upcPattern  = regexp.MustCompile(`^[0-9]{8,14}$`)
)

// Classify reports whether code is an equipment UUID, a manufacturer UPC, or
// neither. Surrounding whitespace is ignored.
func Classify(code string) Kind {
	code = strings.TrimSpace(code)
	switch {
	case uuidPattern.MatchString(code):
		return KindUUID
	case upcPattern.MatchString(code):
		return KindUPC
	default:
		return KindUnknown
	}
}

// Clean trims whitespace and, for label URLs ending in a UUID path segment,
// returns just the UUID. UUIDs are lower-cased.
func Clean(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.LastIndexByte(code, '/'); i >= 0 && strings.Contains(code, "://") {
		if last := code[i+1:]; uuidPattern.MatchString(last) {
			code = last
		}
	}
	if uuidPattern.MatchString(code) {
		return strings.ToLower(code)
	}
	return code
}

// LabelURL is the text encoded in an equipment QR label.
func LabelURL(base, uuid string) string {
	if base == "" {
		return uuid
	}
	return strings.TrimRight(base, "/") + "/equipment/" + uuid
}
