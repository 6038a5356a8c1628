package canvas

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/pkg/models"
)

func TestPackPixels_KnownGroup(t *testing.T) {
	// First group holds pixels (0,0)..(3,0) with colors 1,2,3,4:
	//   byte0 = (1<<2)|(2>>4)       = 0x04
	//   byte1 = ((2&0x0F)<<4)|(3>>2) = 0x20
	//   byte2 = ((3&0x03)<<6)|4      = 0xC4
	canvasID := uuid.New()
	pixels := []models.Pixel{
		{CanvasID: canvasID, X: 0, Y: 0, Color: 1},
		{CanvasID: canvasID, X: 1, Y: 0, Color: 2},
		{CanvasID: canvasID, X: 2, Y: 0, Color: 3},
		{CanvasID: canvasID, X: 3, Y: 0, Color: 4},
	}

	packed := PackPixels(pixels, 32, 32)

	if len(packed) != PackedSize {
		t.Fatalf("Expected %d packed bytes. Got: %d", PackedSize, len(packed))
	}
	if packed[0] != 0x04 || packed[1] != 0x20 || packed[2] != 0xC4 {
		t.Errorf("Unexpected first group bytes: %#02x %#02x %#02x", packed[0], packed[1], packed[2])
	}
}

func TestPackPixels_DefaultFill(t *testing.T) {
	// An empty canvas packs as all pixels = color 10.
	packed := PackPixels(nil, 32, 32)
	colors := UnpackColors(packed)

	for i, c := range colors {
		if c != DefaultColor {
			t.Fatalf("Expected default color %d at index %d. Got: %d", DefaultColor, i, c)
		}
	}
}

func TestPackUnpack_RoundTrip(t *testing.T) {
	// Every position gets a distinct (mod 64) color; unpack must return the
	// exact color for every in-bounds pixel.
	canvasID := uuid.New()
	pixels := make([]models.Pixel, 0, 1024)
	for y := int16(0); y < 32; y++ {
		for x := int16(0); x < 32; x++ {
			pixels = append(pixels, models.Pixel{
				CanvasID: canvasID,
				X:        x,
				Y:        y,
				Color:    (y*32 + x) % 64,
			})
		}
	}

	colors := UnpackColors(PackPixels(pixels, 32, 32))

	for _, p := range pixels {
		index := int(p.Y)*32 + int(p.X)
		if colors[index] != byte(p.Color) {
			t.Fatalf("Round trip mismatch at (%d,%d): expected %d, got %d", p.X, p.Y, p.Color, colors[index])
		}
	}
}

func TestPackPixels_MasksTo6Bits(t *testing.T) {
	pixels := []models.Pixel{{X: 0, Y: 0, Color: 0x7F}}

	colors := UnpackColors(PackPixels(pixels, 32, 32))

	if colors[0] != 0x3F {
		t.Errorf("Expected color masked to 6 bits (0x3F). Got: %#02x", colors[0])
	}
}

func TestPackPixels_OutOfBoundsIgnored(t *testing.T) {
	pixels := []models.Pixel{{X: 40, Y: 40, Color: 5}}

	colors := UnpackColors(PackPixels(pixels, 32, 32))

	for i, c := range colors {
		if c != DefaultColor {
			t.Fatalf("Out-of-bounds pixel leaked into index %d: %d", i, c)
		}
	}
}
