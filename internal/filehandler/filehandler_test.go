package filehandler

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func TestIsSupportedMIME(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/png", true},
		{"image/jpeg", true},
		{"image/webp", true},
		{"image/gif", false},
		{"image/heic", false},
		{"video/mp4", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsSupportedMIME(tt.mime); got != tt.want {
			t.Errorf("IsSupportedMIME(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}
}

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestSniffMIME(t *testing.T) {
	raw := encodePNG(t, 4, 4)
	if got := SniffMIME(raw); got != "image/png" {
		t.Errorf("SniffMIME = %q, want image/png", got)
	}
}

func TestProbeDimensions(t *testing.T) {
	raw := encodePNG(t, 20, 12)
	info := Probe(raw, "image/png")

	if info.MIMEType != "image/png" {
		t.Errorf("MIMEType = %q", info.MIMEType)
	}
	if info.Bytes != len(raw) {
		t.Errorf("Bytes = %d, want %d", info.Bytes, len(raw))
	}
	if info.Width != 20 || info.Height != 12 {
		t.Errorf("dimensions = %dx%d, want 20x12", info.Width, info.Height)
	}
}

func TestProbeGarbageNeverFails(t *testing.T) {
	info := Probe([]byte("not an image at all"), "image/png")
	if info == nil {
		t.Fatal("Probe returned nil")
	}
	if info.Width != 0 || info.Height != 0 {
		t.Errorf("garbage input produced dimensions %dx%d", info.Width, info.Height)
	}
}

func TestThumbnailDownscales(t *testing.T) {
	raw := encodePNG(t, 800, 600)

	preview, mime, err := Thumbnail(raw, 400)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(preview))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if cfg.Width != 400 || cfg.Height != 300 {
		t.Errorf("preview = %dx%d, want 400x300", cfg.Width, cfg.Height)
	}
}

func TestThumbnailSmallImageKeepsSize(t *testing.T) {
	raw := encodePNG(t, 100, 50)

	preview, _, err := Thumbnail(raw, 400)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(preview))
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("preview = %dx%d, want 100x50", cfg.Width, cfg.Height)
	}
}

func TestThumbnailDimensions(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"landscape over limit", 800, 600, 400, 400, 300},
		{"portrait over limit", 600, 800, 400, 300, 400},
		{"within limit", 300, 200, 400, 300, 200},
		{"square over limit", 1000, 1000, 400, 400, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ThumbnailDimensions(tt.w, tt.h, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ThumbnailDimensions(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestThumbnailInvalidInput(t *testing.T) {
	if _, _, err := Thumbnail([]byte("garbage"), 400); err == nil {
		t.Error("expected error for undecodable input")
	}
}
