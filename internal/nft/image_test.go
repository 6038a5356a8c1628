package nft

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/rawblock/pixel-archives/internal/canvas"
	"github.com/rawblock/pixel-archives/pkg/models"
)

func TestGeneratePNGFromColors_Dimensions(t *testing.T) {
	colors := make([]byte, 1024)

	data, err := GeneratePNGFromColors(colors)
	if err != nil {
		t.Fatalf("PNG generation failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Generated data is not a decodable PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 512 || bounds.Dy() != 512 {
		t.Errorf("Expected 512x512. Got: %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestGeneratePNG_UpscaledBlocksMatchPalette(t *testing.T) {
	// A packed canvas rendered through the full unpack -> PNG path: sampled
	// output pixels (16x+d, 16y+d) for d in {0, 7, 15} must match the palette
	// entry of the source color at (x,y).
	pixels := []models.Pixel{
		{X: 0, Y: 0, Color: 0},  // black
		{X: 5, Y: 7, Color: 33}, // blue
		{X: 31, Y: 31, Color: 23},
	}
	packed := canvas.PackPixels(pixels, 32, 32)

	data, err := GeneratePNGFromColors(canvas.UnpackColors(packed))
	if err != nil {
		t.Fatalf("PNG generation failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	checks := []struct {
		x, y  int
		color uint8
	}{
		{0, 0, 0},
		{5, 7, 33},
		{31, 31, 23},
		{1, 0, canvas.DefaultColor}, // untouched pixel renders the default
	}

	for _, check := range checks {
		wantR, wantG, wantB := PaletteRGB(check.color)
		for _, d := range []int{0, 7, 15} {
			px := check.x*16 + d
			py := check.y*16 + d
			r, g, b, _ := img.At(px, py).RGBA()
			if uint8(r>>8) != wantR || uint8(g>>8) != wantG || uint8(b>>8) != wantB {
				t.Errorf("Pixel (%d,%d) block offset %d: got (%d,%d,%d), want (%d,%d,%d)",
					check.x, check.y, d, r>>8, g>>8, b>>8, wantR, wantG, wantB)
			}
		}
	}
}

func TestPaletteRGB_OutOfRangeFallsBack(t *testing.T) {
	r, g, b := PaletteRGB(200)
	if r != 0x80 || g != 0x80 || b != 0x80 {
		t.Errorf("Out-of-range index should fall back to gray. Got: (%d,%d,%d)", r, g, b)
	}
}
