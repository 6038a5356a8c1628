package cache

import (
	"testing"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/pkg/models"
)

func testCacheConfig() *config.CacheConfig {
	return &config.CacheConfig{
		LocalCanvasMaxCapacity: 10,
		LocalCanvasShortTTL:    60,
		LocalCanvasMidTTL:      300,
		LocalPixelsMaxCapacity: 10,
		LocalPixelsShortTTL:    60,
		LocalPixelsMidTTL:      300,
	}
}

func TestLocalCache_CanvasRoundTrip(t *testing.T) {
	local := NewLocalCache(testCacheConfig())
	defer local.Stop()

	canvas := models.Canvas{ID: uuid.New(), Name: "test", State: models.CanvasDraft}

	if _, ok := local.GetCanvas(canvas.ID); ok {
		t.Fatal("Empty cache should miss")
	}

	local.SetCanvas(canvas)
	cached, ok := local.GetCanvas(canvas.ID)
	if !ok {
		t.Fatal("Expected a hit after Set")
	}
	if cached.Name != "test" || cached.State != models.CanvasDraft {
		t.Errorf("Cached canvas mangled: %+v", cached)
	}

	local.InvalidateCanvas(canvas.ID)
	if _, ok := local.GetCanvas(canvas.ID); ok {
		t.Error("Invalidated entry should miss")
	}
}

func TestLocalCache_UpdatePixelInPlace(t *testing.T) {
	local := NewLocalCache(testCacheConfig())
	defer local.Stop()

	canvasID := uuid.New()
	local.SetPixels(canvasID, []CachedPixel{
		{X: 1, Y: 2, Color: 5},
	})

	owner := uuid.New()
	local.UpdatePixel(canvasID, 1, 2, 9, &owner, 1_000_000)

	vec, ok := local.GetPixels(canvasID)
	if !ok {
		t.Fatal("Pixel vector should be resident")
	}
	pixels := vec.Snapshot()
	if len(pixels) != 1 {
		t.Fatalf("Expected 1 pixel. Got: %d", len(pixels))
	}
	if pixels[0].Color != 9 || pixels[0].PriceLamports != 1_000_000 || pixels[0].OwnerID == nil {
		t.Errorf("Update not applied: %+v", pixels[0])
	}
}

func TestLocalCache_UpdatePixelAppendsWhenMissing(t *testing.T) {
	local := NewLocalCache(testCacheConfig())
	defer local.Stop()

	canvasID := uuid.New()
	local.SetPixels(canvasID, nil)

	local.UpdatePixel(canvasID, 4, 4, 7, nil, 0)

	vec, _ := local.GetPixels(canvasID)
	pixels := vec.Snapshot()
	if len(pixels) != 1 || pixels[0].X != 4 || pixels[0].Color != 7 {
		t.Errorf("Expected appended pixel (4,4,7). Got: %+v", pixels)
	}
}

func TestLocalCache_UpdatePixelOnMissIsNoop(t *testing.T) {
	local := NewLocalCache(testCacheConfig())
	defer local.Stop()

	// Updating a non-resident canvas must not create an entry; the next
	// reader repopulates from the database instead.
	canvasID := uuid.New()
	local.UpdatePixel(canvasID, 0, 0, 1, nil, 0)

	if _, ok := local.GetPixels(canvasID); ok {
		t.Error("Update on a cache miss should not materialise an entry")
	}
}
