// Package labels renders equipment QR labels and printable label sheets.
package labels

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/erazemk/oprema/internal/barcode"
)

// DefaultQRSize is the edge length in pixels of a single label PNG.
const DefaultQRSize = 256

// QRCode returns a PNG QR code encoding the label text for an item. base is
// the public server URL; when empty the bare UUID is encoded.
func QRCode(base, uuid string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(barcode.LabelURL(base, uuid), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encoding QR code: %w", err)
	}
	return png, nil
}

// Entry is one label on a sheet.
type Entry struct {
	UUID    string
	Caption string
}

// Layout positions labels on an A4 page, in millimetres.
type Layout struct {
	Cols       int
	Rows       int
	MarginTop  float64
	MarginLeft float64
	GapX       float64
	GapY       float64
}

// DefaultLayout fits 3x8 labels per page.
func DefaultLayout() Layout {
	return Layout{Cols: 3, Rows: 8, MarginTop: 10, MarginLeft: 8, GapX: 3, GapY: 2}
}

// Sheet renders entries as an A4 PDF grid of QR codes, each with the product
// caption above and the UUID below.
func Sheet(base string, entries []Entry, layout Layout) ([]byte, error) {
	if layout.Cols <= 0 || layout.Rows <= 0 {
		return nil, fmt.Errorf("invalid layout %dx%d", layout.Cols, layout.Rows)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Arial", "", 8)

	pageWidth, pageHeight := pdf.GetPageSize()
	availW := pageWidth - layout.MarginLeft*2
	availH := pageHeight - layout.MarginTop*2
	labelW := (availW - float64(layout.Cols-1)*layout.GapX) / float64(layout.Cols)
	labelH := (availH - float64(layout.Rows-1)*layout.GapY) / float64(layout.Rows)
	perPage := layout.Cols * layout.Rows

	if len(entries) == 0 {
		pdf.AddPage()
	}
	for i, e := range entries {
		if i%perPage == 0 {
			pdf.AddPage()
		}
		onPage := i % perPage
		x := layout.MarginLeft + float64(onPage%layout.Cols)*(labelW+layout.GapX)
		y := layout.MarginTop + float64(onPage/layout.Cols)*(labelH+layout.GapY)

		png, err := QRCode(base, e.UUID, DefaultQRSize)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("qr_%d", i)
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))

		qrSize := min(labelH*0.7, labelW*0.9)
		pdf.ImageOptions(name, x+(labelW-qrSize)/2, y+(labelH-qrSize)/2, qrSize, qrSize, false, opts, 0, "")

		pdf.SetFontSize(7)
		pdf.SetXY(x, y+1)
		pdf.CellFormat(labelW, 3, pdf.UnicodeTranslatorFromDescriptor("")(e.Caption), "", 0, "C", false, 0, "")
		pdf.SetFontSize(6)
		pdf.SetXY(x, y+labelH-4)
		pdf.CellFormat(labelW, 3, e.UUID, "", 0, "C", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("rendering label sheet: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing label sheet: %w", err)
	}
	return buf.Bytes(), nil
}
