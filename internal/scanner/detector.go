package scanner

import (
	"fmt"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Detection is one decoded barcode.
type Detection struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

// Detector finds barcodes in a frame. An empty result with a nil error means
// nothing was found. The detectors returned by NewNativeDetector and
// NewQRDetector are safe for concurrent use.
type Detector interface {
	Detect(img image.Image) ([]Detection, error)
}

// zxingDetector serializes Detect calls; the gozxing readers keep scratch
// buffers between decodes.
type zxingDetector struct {
	mu      sync.Mutex
	readers []gozxing.Reader
	hints   map[gozxing.DecodeHintType]interface{}
}

// NewNativeDetector reads QR codes and the retail linear formats: UPC-A,
// UPC-E, EAN-8, EAN-13 and Code 128.
func NewNativeDetector() Detector {
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	return &zxingDetector{
		readers: []gozxing.Reader{
			qrcode.NewQRCodeReader(),
			oned.NewMultiFormatUPCEANReader(hints),
			oned.NewCode128Reader(),
		},
		hints: hints,
	}
}

// NewQRDetector reads QR codes only.
func NewQRDetector() Detector {
	return &zxingDetector{
		readers: []gozxing.Reader{qrcode.NewQRCodeReader()},
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
	}
}

func (d *zxingDetector) Detect(img image.Image) ([]Detection, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("binarizing frame: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var found []Detection
	for _, r := range d.readers {
		res, err := r.Decode(bmp, d.hints)
		r.Reset()
		if err != nil {
			// Not found, checksum and format failures all mean "no code here".
			continue
		}
		found = append(found, Detection{Text: res.GetText(), Format: res.GetBarcodeFormat().String()})
	}
	return found, nil
}
