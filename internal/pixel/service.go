// Package pixel is the bidding engine: draft paints under cooldown,
// published-canvas bids under per-pixel distributed locks, confirmation
// against on-chain transactions, and owner repaints.
package pixel

import (
	"context"
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

type PlaceResult struct {
	X                    int16   `json:"x"`
	Y                    int16   `json:"y"`
	Color                int16   `json:"color"`
	RequiresConfirmation bool    `json:"requires_confirmation"`
	LockExpiresAt        *uint64 `json:"lock_expires_at"`
	PreviousOwnerWallet  *string `json:"previous_owner_wallet"`
}

type Info struct {
	X             int16      `json:"x"`
	Y             int16      `json:"y"`
	Color         int16      `json:"color"`
	OwnerID       *uuid.UUID `json:"owner_id"`
	PriceLamports int64      `json:"price_lamports"`
}

type ConfirmRequest struct {
	CanvasID    uuid.UUID
	UserID      uuid.UUID
	X           int16
	Y           int16
	Color       int16
	BidLamports int64
	Signature   string
}

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

func (s *Service) validateCoordinates(x, y int16) error {
	if x < 0 || x >= int16(s.cfg.Canvas.Width) || y < 0 || y >= int16(s.cfg.Canvas.Height) {
		return apperr.InvalidParams("Coordinates out of bounds")
	}
	return nil
}

func (s *Service) validateColor(color int16) error {
	if color < 0 || color >= int16(s.cfg.Canvas.Colors) {
		return apperr.InvalidParams("Invalid color")
	}
	return nil
}

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

// Place dispatches on canvas state: a free paint on Draft, a bid on
// Published, and a rejection anywhere else.
func (s *Service) Place(ctx context.Context, canvasID, userID uuid.UUID, x, y, color int16, bidLamports *int64) (PlaceResult, error) {
	member, err := s.store.IsCanvasCollaborator(ctx, canvasID, userID)
	if err != nil {
		return PlaceResult{}, err
	}
	if !member {
		return PlaceResult{}, apperr.NotCollaborator
	}

	if err := s.validateCoordinates(x, y); err != nil {
		return PlaceResult{}, err
	}
	if err := s.validateColor(color); err != nil {
		return PlaceResult{}, err
	}

	canvas, err := s.canvasByID(ctx, canvasID)
	if err != nil {
		return PlaceResult{}, err
	}

	switch canvas.State {
	case models.CanvasDraft:
		return s.placeDraft(ctx, canvasID, userID, x, y, color)
	case models.CanvasPublished:
		var bid int64
		if bidLamports != nil {
			bid = *bidLamports
		}
		return s.placeBid(ctx, canvasID, userID, x, y, color, bid)
	case models.CanvasMintPending:
		return PlaceResult{}, apperr.InvalidParams("Canvas is preparing to mint. Pixel operations are temporarily blocked.")
	default:
		return PlaceResult{}, apperr.InvalidParams("Canvas not in a state that allows pixel placement")
	}
}

// placeDraft paints without a bid: lock check, cooldown check, upsert, cache
// effects, broadcast.
func (s *Service) placeDraft(ctx context.Context, canvasID, userID uuid.UUID, x, y, color int16) (PlaceResult, error) {
	if err := assertNotLockedByOther(ctx, s.remote, canvasID, x, y, userID); err != nil {
		return PlaceResult{}, err
	}
	if err := checkCooldown(ctx, s.remote, userID, s.cfg.Canvas.CooldownMs); err != nil {
		return PlaceResult{}, err
	}

	pixel, err := s.store.UpsertPixel(ctx, canvasID, x, y, color, nil, nil)
	if err != nil {
		return PlaceResult{}, err
	}

	s.applyCacheEffects(ctx, canvasID, x, y, color, nil, 0, func() {
		if err := recordCooldown(ctx, s.remote, userID, s.cfg.Canvas.CooldownMs); err != nil {
			logging.GetComponentLogger("pixel").Error("failed to record cooldown", "user_id", userID, "error", err)
		}
	})

	s.rooms.Broadcast(canvasID, ws.PixelUpdate(ws.PixelData{X: x, Y: y, Color: color}))

	return PlaceResult{
		X:                    pixel.X,
		Y:                    pixel.Y,
		Color:                pixel.Color,
		RequiresConfirmation: false,
	}, nil
}

// placeBid validates the outbid, resolves the previous owner's wallet for
// on-chain refund wiring, and reserves the pixel. Durable state is untouched
// until the bid is confirmed.
func (s *Service) placeBid(ctx context.Context, canvasID, userID uuid.UUID, x, y, color int16, bidLamports int64) (PlaceResult, error) {
	if bidLamports < 0 || uint64(bidLamports) < s.cfg.Canvas.MinBidLamports {
		return PlaceResult{}, apperr.BidTooLow(s.cfg.Canvas.MinBidLamports)
	}

	current, err := s.store.FindPixel(ctx, canvasID, x, y)
	if err != nil {
		return PlaceResult{}, err
	}

	minRequired := int64(s.cfg.Canvas.MinBidLamports)
	if current != nil && current.PriceLamports+1 > minRequired {
		minRequired = current.PriceLamports + 1
	}
	if bidLamports < minRequired {
		return PlaceResult{}, apperr.BidTooLow(uint64(minRequired))
	}

	var previousOwnerWallet *string
	if current != nil && current.OwnerID != nil {
		owner, err := s.store.FindUserByID(ctx, *current.OwnerID)
		if err != nil {
			return PlaceResult{}, err
		}
		if owner != nil {
			previousOwnerWallet = &owner.WalletAddress
		}
	}

	lockTTL := time.Duration(s.cfg.Canvas.LockMs) * time.Millisecond
	acquired, err := acquirePixelLock(ctx, s.remote, canvasID, x, y, userID, lockTTL)
	if err != nil {
		return PlaceResult{}, err
	}
	if !acquired {
		return PlaceResult{}, apperr.PixelLocked
	}

	s.rooms.Broadcast(canvasID, ws.PixelLocked(x, y, userID))

	expiresAt := nowMs() + s.cfg.Canvas.LockMs
	return PlaceResult{
		X:                    x,
		Y:                    y,
		Color:                color,
		RequiresConfirmation: true,
		LockExpiresAt:        &expiresAt,
		PreviousOwnerWallet:  previousOwnerWallet,
	}, nil
}

// ConfirmBid finalises a reserved bid once its on-chain transaction
// verifies. On verification failure the lock is left to expire so the caller
// can retry within its TTL.
func (s *Service) ConfirmBid(ctx context.Context, req ConfirmRequest) (Info, error) {
	if req.BidLamports < 0 || uint64(req.BidLamports) < s.cfg.Canvas.MinBidLamports {
		return Info{}, apperr.BidTooLow(s.cfg.Canvas.MinBidLamports)
	}

	if err := assertLockOwned(ctx, s.remote, req.CanvasID, req.X, req.Y, req.UserID); err != nil {
		return Info{}, err
	}

	// The price may have advanced while the caller was signing.
	current, err := s.store.FindPixel(ctx, req.CanvasID, req.X, req.Y)
	if err != nil {
		return Info{}, err
	}
	if current != nil && req.BidLamports <= current.PriceLamports {
		return Info{}, apperr.BidTooLow(uint64(current.PriceLamports + 1))
	}

	valid, err := s.chain.VerifyProgramTransaction(ctx, req.Signature)
	if err != nil {
		return Info{}, err
	}
	if !valid {
		return Info{}, apperr.TransactionFailed("Transaction verification failed")
	}

	var previousPrice int64
	if current != nil {
		previousPrice = current.PriceLamports
	}

	pixel, err := s.store.UpsertPixel(ctx, req.CanvasID, req.X, req.Y, req.Color, &req.UserID, &req.BidLamports)
	if err != nil {
		return Info{}, err
	}

	// The previous owner's stake is refunded by the on-chain program, so
	// only the price difference stays escrowed.
	if _, err := s.store.AdjustCanvasEscrow(ctx, req.CanvasID, req.BidLamports-previousPrice); err != nil {
		logging.GetComponentLogger("pixel").Error("failed to adjust canvas escrow", "canvas_id", req.CanvasID, "error", err)
	} else {
		s.local.InvalidateCanvas(req.CanvasID)
	}

	s.applyCacheEffects(ctx, req.CanvasID, req.X, req.Y, req.Color, &req.UserID, req.BidLamports, func() {
		if err := releasePixelLock(ctx, s.remote, req.CanvasID, req.X, req.Y); err != nil {
			logging.GetComponentLogger("pixel").Error("failed to release pixel lock", "canvas_id", req.CanvasID, "error", err)
		}
	})

	price := uint64(pixel.PriceLamports)
	s.rooms.Broadcast(req.CanvasID, ws.PixelUpdate(ws.PixelData{
		X: pixel.X, Y: pixel.Y, Color: pixel.Color,
		OwnerID: pixel.OwnerID, PriceLamports: &price,
	}))
	s.rooms.Broadcast(req.CanvasID, ws.PixelUnlocked(req.X, req.Y))

	return Info{
		X:             pixel.X,
		Y:             pixel.Y,
		Color:         pixel.Color,
		OwnerID:       pixel.OwnerID,
		PriceLamports: pixel.PriceLamports,
	}, nil
}

// CancelBid releases a lock held by the caller. Repeating it after expiry
// fails with a precise error rather than corrupting another bid.
func (s *Service) CancelBid(ctx context.Context, canvasID, userID uuid.UUID, x, y int16) error {
	if err := assertLockOwned(ctx, s.remote, canvasID, x, y, userID); err != nil {
		return err
	}
	if err := releasePixelLock(ctx, s.remote, canvasID, x, y); err != nil {
		return err
	}
	s.rooms.Broadcast(canvasID, ws.PixelUnlocked(x, y))
	return nil
}

// Paint recolors a pixel the caller already owns. Ownership and price are
// unchanged; locks and cooldowns are not involved.
func (s *Service) Paint(ctx context.Context, canvasID, userID uuid.UUID, x, y, color int16, signature string) (Info, error) {
	member, err := s.store.IsCanvasCollaborator(ctx, canvasID, userID)
	if err != nil {
		return Info{}, err
	}
	if !member {
		return Info{}, apperr.NotCollaborator
	}

	if err := s.validateCoordinates(x, y); err != nil {
		return Info{}, err
	}
	if err := s.validateColor(color); err != nil {
		return Info{}, err
	}

	pixel, err := s.store.FindPixel(ctx, canvasID, x, y)
	if err != nil {
		return Info{}, err
	}
	if pixel == nil {
		return Info{}, apperr.InvalidParams("Pixel not found")
	}
	if pixel.OwnerID == nil || *pixel.OwnerID != userID {
		return Info{}, apperr.Unauthorized
	}

	valid, err := s.chain.VerifyProgramTransaction(ctx, signature)
	if err != nil {
		return Info{}, err
	}
	if !valid {
		return Info{}, apperr.TransactionFailed("Transaction verification failed")
	}

	updated, err := s.store.UpsertPixel(ctx, canvasID, x, y, color, nil, nil)
	if err != nil {
		return Info{}, err
	}

	s.applyCacheEffects(ctx, canvasID, x, y, color, updated.OwnerID, updated.PriceLamports, nil)

	price := uint64(updated.PriceLamports)
	s.rooms.Broadcast(canvasID, ws.PixelUpdate(ws.PixelData{
		X: updated.X, Y: updated.Y, Color: updated.Color,
		OwnerID: updated.OwnerID, PriceLamports: &price,
	}))

	return Info{
		X:             updated.X,
		Y:             updated.Y,
		Color:         updated.Color,
		OwnerID:       updated.OwnerID,
		PriceLamports: updated.PriceLamports,
	}, nil
}

// applyCacheEffects runs the coherence sequence behind every pixel write:
// update the local vector, drop the remote snapshot, and run the optional
// extra KV effect, all concurrently. Broadcasts happen only after this
// returns.
func (s *Service) applyCacheEffects(ctx context.Context, canvasID uuid.UUID, x, y, color int16, ownerID *uuid.UUID, price int64, extra func()) {
	log := logging.GetComponentLogger("pixel")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.local.UpdatePixel(canvasID, x, y, color, ownerID, price)
	}()
	go func() {
		defer wg.Done()
		if err := s.remote.Delete(ctx, cache.CanvasPixelsKey(canvasID)); err != nil {
			log.Error("failed to drop pixel snapshot", "canvas_id", canvasID, "error", err)
		}
	}()
	if extra != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			extra()
		}()
	}
	wg.Wait()
}
