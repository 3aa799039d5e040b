package labels

import (
	"bytes"
	"image/png"
	"testing"
)

func TestQRCode(t *testing.T) {
	data, err := QRCode("https://lend.example.org", "3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e", 128)
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding PNG: %v", err)
	}
	if img.Bounds().Dx() != 128 {
		t.Errorf("expected 128px wide, got %d", img.Bounds().Dx())
	}
}

func TestSheet(t *testing.T) {
	var entries []Entry
	for i := 0; i < 30; i++ {
		entries = append(entries, Entry{UUID: "3f2b8c1e-4d5a-4b6c-8d7e-9f0a1b2c3d4e", Caption: "Chromebook"})
	}

	data, err := Sheet("", entries, DefaultLayout())
	if err != nil {
		t.Fatalf("Sheet: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Errorf("expected PDF output, got %q", data[:min(len(data), 8)])
	}
}

func TestSheetEmpty(t *testing.T) {
	data, err := Sheet("", nil, DefaultLayout())
	if err != nil {
		t.Fatalf("Sheet: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("expected a blank PDF page")
	}
}

func TestSheetInvalidLayout(t *testing.T) {
	if _, err := Sheet("", nil, Layout{}); err == nil {
		t.Error("expected error for empty layout")
	}
}
