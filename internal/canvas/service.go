package canvas

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/cache"
	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/internal/db"
	"github.com/rawblock/pixel-archives/internal/logging"
	"github.com/rawblock/pixel-archives/internal/solana"
	"github.com/rawblock/pixel-archives/internal/ws"
	"github.com/rawblock/pixel-archives/pkg/models"
)

// Service owns the canvas lifecycle and collaboration operations, keeping
// the database, both cache tiers and the room feed coherent.
type Service struct {
	store  *db.Store
	local  *cache.LocalCache
	remote cache.RemoteStore
	chain  *solana.Client
	rooms  *ws.Manager
	cfg    *config.Config
}

func NewService(store *db.Store, local *cache.LocalCache, remote cache.RemoteStore, chain *solana.Client, rooms *ws.Manager, cfg *config.Config) *Service {
	return &Service{store: store, local: local, remote: remote, chain: chain, rooms: rooms, cfg: cfg}
}

// canvasByID reads through the local cache.
func (s *Service) canvasByID(ctx context.Context, canvasID uuid.UUID) (models.Canvas, error) {
	if cached, ok := s.local.GetCanvas(canvasID); ok {
		return cached, nil
	}
	canvas, err := s.store.FindCanvasByID(ctx, canvasID)
	if err != nil {
		return models.Canvas{}, err
	}
	if canvas == nil {
		return models.Canvas{}, apperr.CanvasNotFound
	}
	s.local.SetCanvas(*canvas)
	return *canvas, nil
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, name string, initialColor int16) (Info, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || len(trimmed) > s.cfg.Canvas.MaxNameLength {
		return Info{}, apperr.InvalidParams("Canvas name cannot be empty or exceed the maximum length")
	}
	if initialColor < 0 || initialColor >= int16(s.cfg.Canvas.Colors) {
		return Info{}, apperr.InvalidParams("Invalid initial color")
	}

	exists, err := s.store.CanvasExistsByNameAndOwner(ctx, ownerID, trimmed)
	if err != nil {
		return Info{}, err
	}
	if exists {
		return Info{}, apperr.CanvasNameExists
	}

	canvas, err := s.store.CreateCanvas(ctx, ownerID, trimmed, s.cfg.Canvas.Width, s.cfg.Canvas.Height, initialColor)
	if err != nil {
		return Info{}, err
	}
	return InfoFrom(canvas), nil
}

// InitializePublish moves Draft → Publishing and returns the transaction
// envelope the owner signs off-process.
func (s *Service) InitializePublish(ctx context.Context, canvasID, userID uuid.UUID) (PublishTransactionInfo, error) {
	// Drop any stale snapshot so the owner check sees current state.
	s.local.InvalidateCanvas(canvasID)

	canvas, err := s.store.FindCanvasByID(ctx, canvasID)
	if err != nil {
		return PublishTransactionInfo{}, err
	}
	if canvas == nil {
		return PublishTransactionInfo{}, apperr.CanvasNotFound
	}
	if canvas.OwnerID != userID {
		return PublishTransactionInfo{}, apperr.NotOwner
	}

	lockKey := cache.CanvasLockKey(canvasID)
	lockTTL := time.Duration(s.cfg.Cache.RedisShortTTL) * time.Second
	acquired, err := s.remote.SetNX(ctx, lockKey, lockTTL)
	if err != nil {
		return PublishTransactionInfo{}, err
	}
	if !acquired {
		return PublishTransactionInfo{}, apperr.PixelLocked
	}

	pixels, err := s.store.FindPixelsByCanvas(ctx, canvasID)
	if err != nil {
		return PublishTransactionInfo{}, err
	}
	packed := PackPixels(pixels, s.cfg.Canvas.Width, s.cfg.Canvas.Height)

	if _, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasPublishing, nil); err != nil {
		return PublishTransactionInfo{}, err
	}

	canvasPDA, _, err := s.chain.DeriveCanvasPDA(canvasID)
	if err != nil {
		return PublishTransactionInfo{}, apperr.Internalf("derive canvas PDA: %w", err)
	}
	configPDA, _, err := s.chain.DeriveConfigPDA()
	if err != nil {
		return PublishTransactionInfo{}, apperr.Internalf("derive config PDA: %w", err)
	}

	blockhash, err := s.chain.RecentBlockhash(ctx)
	if err != nil {
		return PublishTransactionInfo{}, apperr.SolanaRpc(err)
	}

	s.rooms.Broadcast(canvasID, ws.PublishingStarted())

	return PublishTransactionInfo{
		CanvasID:          canvasID,
		CanvasPDA:         canvasPDA.String(),
		ConfigPDA:         configPDA.String(),
		ProgramID:         s.chain.ProgramID().String(),
		Blockhash:         blockhash.String(),
		CanvasIDBytes:     [16]byte(canvasID),
		PixelColorsPacked: base64.StdEncoding.EncodeToString(packed),
	}, nil
}

// ConfirmPublish verifies the submitted transaction, moves Publishing →
// Published and releases the publish lock.
func (s *Service) ConfirmPublish(ctx context.Context, canvasID, userID uuid.UUID, signature, canvasPDA string) (Info, error) {
	canvas, err := s.canvasByID(ctx, canvasID)
	if err != nil {
		return Info{}, err
	}
	if canvas.OwnerID != userID {
		return Info{}, apperr.NotOwner
	}

	valid, err := s.chain.VerifyProgramTransaction(ctx, signature)
	if err != nil {
		return Info{}, err
	}
	if !valid {
		return Info{}, apperr.TransactionFailed("Transaction verification failed")
	}

	updated, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasPublished, func(c *models.Canvas) {
		now := time.Now().UTC()
		c.PublishedAt = &now
		pda := canvasPDA
		c.CanvasPDA = &pda
	})
	if err != nil {
		return Info{}, err
	}

	s.invalidateAndUnlock(ctx, canvasID)

	s.rooms.Broadcast(canvasID, ws.Published(canvasPDA))
	return InfoFrom(updated), nil
}

// CancelPublish rolls Publishing back to Draft. No on-chain interaction.
func (s *Service) CancelPublish(ctx context.Context, canvasID, userID uuid.UUID) error {
	canvas, err := s.canvasByID(ctx, canvasID)
	if err != nil {
		return err
	}
	if canvas.OwnerID != userID {
		return apperr.NotOwner
	}

	if _, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasDraft, nil); err != nil {
		return err
	}

	s.invalidateAndUnlock(ctx, canvasID)
	return nil
}

// invalidateAndUnlock clears the local canvas entry and the remote canvas
// lock concurrently; both are best-effort cleanups behind a committed write.
func (s *Service) invalidateAndUnlock(ctx context.Context, canvasID uuid.UUID) {
	lockKey := cache.CanvasLockKey(canvasID)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.local.InvalidateCanvas(canvasID)
	}()
	go func() {
		defer wg.Done()
		if err := s.remote.Delete(ctx, lockKey); err != nil {
			logging.GetComponentLogger("canvas").Error("failed to release canvas lock", "canvas_id", canvasID, "error", err)
		}
	}()
	wg.Wait()
}

// Delete removes a Draft canvas with all of its pixels, collaborators and
// cache entries.
func (s *Service) Delete(ctx context.Context, canvasID, userID uuid.UUID) error {
	canvas, err := s.canvasByID(ctx, canvasID)
	if err != nil {
		return err
	}
	if canvas.OwnerID != userID {
		return apperr.NotOwner
	}
	if canvas.State != models.CanvasDraft {
		return apperr.InvalidParams("Only Draft canvases can be deleted")
	}

	if err := s.store.DeleteCanvas(ctx, canvasID); err != nil {
		return err
	}

	log := logging.GetComponentLogger("canvas")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.local.InvalidateCanvas(canvasID)
		s.local.InvalidatePixels(canvasID)
	}()
	go func() {
		defer wg.Done()
		for _, key := range []string{cache.CanvasPixelsKey(canvasID), cache.CanvasLockKey(canvasID)} {
			if err := s.remote.Delete(ctx, key); err != nil {
				log.Error("failed to delete cache key", "key", key, "error", err)
			}
		}
	}()
	wg.Wait()
	return nil
}

// Join adds the caller as a collaborator via invite code. Joining a canvas
// you already belong to is a successful no-op.
func (s *Service) Join(ctx context.Context, userID uuid.UUID, inviteCode string) (JoinResult, error) {
	canvas, err := s.store.FindCanvasByInviteCode(ctx, inviteCode)
	if err != nil {
		return JoinResult{}, err
	}
	if canvas == nil {
		return JoinResult{}, apperr.CanvasNotFound
	}

	member, err := s.store.IsCanvasCollaborator(ctx, canvas.ID, userID)
	if err != nil {
		return JoinResult{}, err
	}
	if member {
		return JoinResult{CanvasID: canvas.ID, AlreadyMember: true}, nil
	}

	count, err := s.store.CountCanvasCollaborators(ctx, canvas.ID)
	if err != nil {
		return JoinResult{}, err
	}
	if count >= s.cfg.Canvas.MaxCollaborators {
		return JoinResult{}, apperr.InvalidParams("Canvas collaborator limit reached")
	}

	if err := s.store.AddCanvasCollaborator(ctx, canvas.ID, userID); err != nil {
		return JoinResult{}, err
	}
	return JoinResult{CanvasID: canvas.ID, AlreadyMember: false}, nil
}

// Get returns the canvas with its pixel snapshot through the two-tier read
// path: local for metadata, remote KV for the pixel buffer.
func (s *Service) Get(ctx context.Context, canvasID, userID uuid.UUID) (WithPixels, error) {
	member, err := s.store.IsCanvasCollaborator(ctx, canvasID, userID)
	if err != nil {
		return WithPixels{}, err
	}
	if !member {
		return WithPixels{}, apperr.NotCollaborator
	}

	canvas, err := s.canvasByID(ctx, canvasID)
	if err != nil {
		return WithPixels{}, err
	}

	snapshotKey := cache.CanvasPixelsKey(canvasID)
	var snapshot CachedPixelData
	hit, err := s.remote.GetJSON(ctx, snapshotKey, &snapshot)
	if err != nil {
		// A broken snapshot read falls back to the database.
		logging.GetComponentLogger("canvas").Error("pixel snapshot read failed", "canvas_id", canvasID, "error", err)
		hit = false
	}
	if !hit {
		pixels, err := s.store.FindPixelsByCanvas(ctx, canvasID)
		if err != nil {
			return WithPixels{}, err
		}
		snapshot = s.buildPixelSnapshot(pixels)
		ttl := time.Duration(s.cfg.Cache.RedisMidTTL) * time.Second
		if err := s.remote.SetJSON(ctx, snapshotKey, &snapshot, ttl); err != nil {
			return WithPixels{}, err
		}
	}

	return WithPixels{
		Canvas:      InfoFrom(canvas),
		PixelColors: snapshot.PixelColors,
		OwnedPixels: snapshot.OwnedPixels,
	}, nil
}

func (s *Service) buildPixelSnapshot(pixels []models.Pixel) CachedPixelData {
	width := int(s.cfg.Canvas.Width)
	height := int(s.cfg.Canvas.Height)

	colorBytes := make([]byte, width*height)
	owned := make([]OwnedPixelInfo, 0)
	for _, p := range pixels {
		index := int(p.Y)*width + int(p.X)
		if index >= 0 && index < len(colorBytes) {
			colorBytes[index] = byte(p.Color)
		}
		if p.OwnerID != nil {
			owned = append(owned, OwnedPixelInfo{
				X:             p.X,
				Y:             p.Y,
				OwnerID:       p.OwnerID.String(),
				PriceLamports: p.PriceLamports,
			})
		}
	}

	return CachedPixelData{
		PixelColors: base64.StdEncoding.EncodeToString(colorBytes),
		OwnedPixels: owned,
	}
}

// List returns the caller's owned and collaborating canvases, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) (UserCanvases, error) {
	owned, err := s.store.ListCanvasesByOwner(ctx, userID)
	if err != nil {
		return UserCanvases{}, err
	}
	collaborating, err := s.store.ListCanvasesByCollaborator(ctx, userID)
	if err != nil {
		return UserCanvases{}, err
	}

	result := UserCanvases{
		Owned:         make([]Info, 0, len(owned)),
		Collaborating: make([]Info, 0, len(collaborating)),
	}
	for _, c := range owned {
		result.Owned = append(result.Owned, InfoFrom(c))
	}
	for _, c := range collaborating {
		result.Collaborating = append(result.Collaborating, InfoFrom(c))
	}
	return result, nil
}
