package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/pkg/models"
)

// CachedPixel is the in-process projection of one pixel row.
type CachedPixel struct {
	X             int16
	Y             int16
	Color         int16
	OwnerID       *uuid.UUID
	PriceLamports int64
}

// PixelVector is a canvas's pixel list under shared read/write
// synchronisation; readers take RLock, the update path takes Lock.
type PixelVector struct {
	mu         sync.RWMutex
	pixels     []CachedPixel
	insertedAt time.Time
}

// Snapshot copies the vector under a shared guard.
func (v *PixelVector) Snapshot() []CachedPixel {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]CachedPixel, len(v.pixels))
	copy(out, v.pixels)
	return out
}

type canvasEntry struct {
	canvas     models.Canvas
	insertedAt time.Time
}

// LocalCache is the in-process tier: bounded maps for canvas metadata and
// per-canvas pixel vectors. The ttlcache TTL acts as the idle (short) expiry
// via touch-on-hit; the absolute (mid) TTL is enforced on read against the
// entry's insertion time.
type LocalCache struct {
	canvases     *ttlcache.Cache[uuid.UUID, canvasEntry]
	pixels       *ttlcache.Cache[uuid.UUID, *PixelVector]
	canvasMidTTL time.Duration
	pixelsMidTTL time.Duration
}

func NewLocalCache(cfg *config.CacheConfig) *LocalCache {
	canvases := ttlcache.New(
		ttlcache.WithTTL[uuid.UUID, canvasEntry](time.Duration(cfg.LocalCanvasShortTTL)*time.Second),
		ttlcache.WithCapacity[uuid.UUID, canvasEntry](cfg.LocalCanvasMaxCapacity),
	)
	pixels := ttlcache.New(
		ttlcache.WithTTL[uuid.UUID, *PixelVector](time.Duration(cfg.LocalPixelsShortTTL)*time.Second),
		ttlcache.WithCapacity[uuid.UUID, *PixelVector](cfg.LocalPixelsMaxCapacity),
	)
	go canvases.Start()
	go pixels.Start()

	return &LocalCache{
		canvases:     canvases,
		pixels:       pixels,
		canvasMidTTL: time.Duration(cfg.LocalCanvasMidTTL) * time.Second,
		pixelsMidTTL: time.Duration(cfg.LocalPixelsMidTTL) * time.Second,
	}
}

func (l *LocalCache) Stop() {
	l.canvases.Stop()
	l.pixels.Stop()
}

func (l *LocalCache) GetCanvas(id uuid.UUID) (models.Canvas, bool) {
	item := l.canvases.Get(id)
	if item == nil {
		return models.Canvas{}, false
	}
	entry := item.Value()
	if time.Since(entry.insertedAt) > l.canvasMidTTL {
		l.canvases.Delete(id)
		return models.Canvas{}, false
	}
	return entry.canvas, true
}

func (l *LocalCache) SetCanvas(canvas models.Canvas) {
	l.canvases.Set(canvas.ID, canvasEntry{canvas: canvas, insertedAt: time.Now()}, ttlcache.DefaultTTL)
}

func (l *LocalCache) InvalidateCanvas(id uuid.UUID) {
	l.canvases.Delete(id)
}

func (l *LocalCache) GetPixels(canvasID uuid.UUID) (*PixelVector, bool) {
	item := l.pixels.Get(canvasID)
	if item == nil {
		return nil, false
	}
	vec := item.Value()
	vec.mu.RLock()
	expired := time.Since(vec.insertedAt) > l.pixelsMidTTL
	vec.mu.RUnlock()
	if expired {
		l.pixels.Delete(canvasID)
		return nil, false
	}
	return vec, true
}

func (l *LocalCache) SetPixels(canvasID uuid.UUID, pixels []CachedPixel) {
	l.pixels.Set(canvasID, &PixelVector{pixels: pixels, insertedAt: time.Now()}, ttlcache.DefaultTTL)
}

func (l *LocalCache) InvalidatePixels(canvasID uuid.UUID) {
	l.pixels.Delete(canvasID)
}

// UpdatePixel mutates the cached vector in place if it is resident. A miss is
// not an error; the next read repopulates from the database.
func (l *LocalCache) UpdatePixel(canvasID uuid.UUID, x, y, color int16, ownerID *uuid.UUID, price int64) {
	item := l.pixels.Get(canvasID)
	if item == nil {
		return
	}
	vec := item.Value()
	vec.mu.Lock()
	defer vec.mu.Unlock()
	for i := range vec.pixels {
		if vec.pixels[i].X == x && vec.pixels[i].Y == y {
			vec.pixels[i].Color = color
			vec.pixels[i].OwnerID = ownerID
			vec.pixels[i].PriceLamports = price
			return
		}
	}
	vec.pixels = append(vec.pixels, CachedPixel{
		X: x, Y: y, Color: color, OwnerID: ownerID, PriceLamports: price,
	})
}
