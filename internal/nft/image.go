package nft

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"github.com/rawblock/pixel-archives/pkg/models"
)

const (
	canvasSide = 32
	imageScale = 16 // 512x512 output
)

// palette maps the 6-bit color index space to RGB. The layout mirrors the
// on-chain program's palette: grayscale ramp, then hue rows, then earth
// tones and pastels.
var palette = [64][3]uint8{
	{0x00, 0x00, 0x00}, {0x1a, 0x1a, 0x1a}, {0x33, 0x33, 0x33}, {0x4d, 0x4d, 0x4d},
	{0x66, 0x66, 0x66}, {0x80, 0x80, 0x80}, {0x99, 0x99, 0x99}, {0xb3, 0xb3, 0xb3},
	{0xcc, 0xcc, 0xcc}, {0xe6, 0xe6, 0xe6}, {0xff, 0xff, 0xff}, {0xa9, 0x38, 0x38},
	{0xf5, 0xf5, 0xdc}, {0x8b, 0x00, 0x00}, {0xdc, 0x14, 0x3c}, {0xff, 0x63, 0x47},
	{0xff, 0x45, 0x00}, {0xff, 0x8c, 0x00}, {0xff, 0xa5, 0x00}, {0xff, 0xd7, 0x00},
	{0xff, 0xff, 0x00}, {0xad, 0xff, 0x2f}, {0x7f, 0xff, 0x00}, {0x00, 0xff, 0x00},
	{0x32, 0xcd, 0x32}, {0x22, 0x8b, 0x22}, {0x00, 0x64, 0x00}, {0x00, 0x8b, 0x8b},
	{0x20, 0xb2, 0xaa}, {0x00, 0xce, 0xd1}, {0x00, 0xff, 0xff}, {0x00, 0xbf, 0xff},
	{0x1e, 0x90, 0xff}, {0x00, 0x00, 0xff}, {0x00, 0x00, 0xcd}, {0x00, 0x00, 0x8b},
	{0x19, 0x19, 0x70}, {0x4b, 0x00, 0x82}, {0x8b, 0x00, 0x8b}, {0x94, 0x00, 0xd3},
	{0x99, 0x32, 0xcc}, {0xba, 0x55, 0xd3}, {0xda, 0x70, 0xd6}, {0xff, 0x00, 0xff},
	{0xff, 0x69, 0xb4}, {0xff, 0x14, 0x93}, {0xc7, 0x15, 0x85}, {0xdb, 0x70, 0x93},
	{0x8b, 0x45, 0x13}, {0xa0, 0x52, 0x2d}, {0xd2, 0x69, 0x1e}, {0xcd, 0x85, 0x3f},
	{0xde, 0xb8, 0x87}, {0xf5, 0xde, 0xb3}, {0xfa, 0xeb, 0xd7}, {0xff, 0xe4, 0xc4},
	{0xff, 0xda, 0xb9}, {0xff, 0xe4, 0xe1}, {0xff, 0xf0, 0xf5}, {0xe6, 0xe6, 0xfa},
	{0xd8, 0xbf, 0xd8}, {0xdd, 0xa0, 0xdd}, {0xee, 0x82, 0xee}, {0xff, 0xff, 0xe0},
}

// PaletteRGB returns the RGB triple for a color index; out-of-range indices
// fall back to mid gray.
func PaletteRGB(index uint8) (uint8, uint8, uint8) {
	if int(index) >= len(palette) {
		return 0x80, 0x80, 0x80
	}
	c := palette[index]
	return c[0], c[1], c[2]
}

// GeneratePNGFromColors renders one color index per pixel (row-major, 1024
// entries) into a 16x-upscaled 512x512 PNG.
func GeneratePNGFromColors(colors []byte) ([]byte, error) {
	side := canvasSide * imageScale
	img := image.NewRGBA(image.Rect(0, 0, side, side))

	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			srcX := x / imageScale
			srcY := y / imageScale
			idx := srcY*canvasSide + srcX

			var r, g, b uint8 = 0xff, 0xff, 0xff
			if idx < len(colors) {
				r, g, b = PaletteRGB(colors[idx])
			}
			img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GeneratePNG renders pixel rows straight from the database, defaulting
// unset positions to white.
func GeneratePNG(pixels []models.Pixel) ([]byte, error) {
	colors := make([]byte, canvasSide*canvasSide)
	for i := range colors {
		colors[i] = 10 // white
	}
	for _, p := range pixels {
		idx := int(p.Y)*canvasSide + int(p.X)
		if idx >= 0 && idx < len(colors) {
			colors[idx] = byte(p.Color)
		}
	}
	return GeneratePNGFromColors(colors)
}
