package api

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/auth"
	"github.com/rawblock/pixel-archives/internal/canvas"
	"github.com/rawblock/pixel-archives/internal/nft"
	"github.com/rawblock/pixel-archives/internal/pixel"
	"github.com/rawblock/pixel-archives/internal/ratelimit"
)

// Services bundles everything the dispatcher needs; handlers receive decoded
// params and this bundle rather than carrying state inside request structs.
type Services struct {
	Auth     *auth.Service
	Jwt      *auth.JwtService
	Canvas   *canvas.Service
	Pixel    *pixel.Service
	Nft      *nft.Service
	Limiters *ratelimit.Limiters
}

type Dispatcher struct {
	services *Services
}

func NewDispatcher(services *Services) *Dispatcher {
	return &Dispatcher{services: services}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var params T
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, apperr.InvalidParams(err.Error())
	}
	return params, nil
}

// requireUser resolves the caller from the injected access token.
func (d *Dispatcher) requireUser(accessToken string) (uuid.UUID, error) {
	claims, err := d.services.Jwt.ValidateToken(accessToken, auth.TokenAccess)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return uuid.Nil, apperr.Unauthorized
	}
	return userID, nil
}

// limiterFor maps a method to its rate-limit category; nil means unlimited.
func (d *Dispatcher) limiterFor(method string) *ratelimit.Limiter {
	switch method {
	case "auth.login", "auth.register", "auth.refresh":
		return d.services.Limiters.Auth
	case "pixel.place", "pixel.paint":
		return d.services.Limiters.Pixel
	case "canvas.create", "canvas.join", "canvas.delete":
		return d.services.Limiters.Canvas
	case "canvas.publish", "canvas.confirmPublish", "nft.announceMint",
		"nft.mint", "nft.confirmMint", "nft.prepareMetadata":
		return d.services.Limiters.Solana
	}
	return nil
}

// Dispatch rate-limits and routes one JSON-RPC call.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage, clientKey string) (any, error) {
	if limiter := d.limiterFor(method); limiter != nil {
		allowed, _, _, err := limiter.Check(ctx, clientKey)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, apperr.RateLimitExceeded
		}
	}

	switch {
	case method == "auth.register":
		return d.authenticate(ctx, params, auth.OpRegister)
	case method == "auth.login":
		return d.authenticate(ctx, params, auth.OpLogin)
	case method == "auth.logout":
		return d.logout(ctx, params)
	case method == "auth.refresh":
		return d.refresh(ctx, params)

	case method == "canvas.create":
		return d.createCanvas(ctx, params)
	case method == "canvas.list":
		return d.listCanvases(ctx, params)
	case method == "canvas.get":
		return d.getCanvas(ctx, params)
	case method == "canvas.join":
		return d.joinCanvas(ctx, params)
	case method == "canvas.publish":
		return d.publishCanvas(ctx, params)
	case method == "canvas.confirmPublish":
		return d.confirmPublishCanvas(ctx, params)
	case method == "canvas.cancelPublish":
		return d.cancelPublishCanvas(ctx, params)
	case method == "canvas.delete":
		return d.deleteCanvas(ctx, params)

	case method == "pixel.place":
		return d.placePixel(ctx, params)
	case method == "pixel.confirm":
		return d.confirmPixel(ctx, params)
	case method == "pixel.cancel":
		return d.cancelPixel(ctx, params)
	case method == "pixel.paint":
		return d.paintPixel(ctx, params)

	case method == "nft.announceMint":
		return d.announceMint(ctx, params)
	case method == "nft.cancelMintCountdown":
		return d.cancelMintCountdown(ctx, params)
	case method == "nft.prepareMetadata":
		return d.prepareMetadata(ctx, params)
	case method == "nft.mint":
		return d.mint(ctx, params)
	case method == "nft.confirmMint":
		return d.confirmMint(ctx, params)
	case method == "nft.cancelMint":
		return d.cancelMint(ctx, params)
	}
	return nil, apperr.MethodNotFound(method)
}

func (d *Dispatcher) authenticate(ctx context.Context, raw json.RawMessage, op auth.Operation) (any, error) {
	params, err := decode[AuthParams](raw)
	if err != nil {
		return nil, err
	}
	return d.services.Auth.Authenticate(ctx, op, params.Wallet, params.Username, params.Message, params.Signature)
}

func (d *Dispatcher) logout(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[SessionParams](raw)
	if err != nil {
		return nil, err
	}
	if err := d.services.Auth.Logout(ctx, params.AccessToken, params.RefreshToken); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (d *Dispatcher) refresh(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[SessionParams](raw)
	if err != nil {
		return nil, err
	}
	return d.services.Auth.Refresh(ctx, params.AccessToken, params.RefreshToken)
}

func (d *Dispatcher) createCanvas(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CreateCanvasParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	var initialColor int16
	if params.InitialColor != nil {
		initialColor = *params.InitialColor
	}
	return d.services.Canvas.Create(ctx, userID, params.Name, initialColor)
}

func (d *Dispatcher) listCanvases(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[ListCanvasParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	return d.services.Canvas.List(ctx, userID)
}

func (d *Dispatcher) getCanvas(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[GetCanvasParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	return d.services.Canvas.Get(ctx, params.CanvasID, userID)
}

func (d *Dispatcher) joinCanvas(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[JoinCanvasParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	result, err := d.services.Canvas.Join(ctx, userID, params.InviteCode)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":        true,
		"canvas_id":      result.CanvasID.String(),
		"already_member": result.AlreadyMember,
	}, nil
}

func (d *Dispatcher) publishCanvas(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	envelope, err := d.services.Canvas.InitializePublish(ctx, params.CanvasID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":     true,
		"state":       "publishing",
		"transaction": envelope,
	}, nil
}

func (d *Dispatcher) confirmPublishCanvas(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[ConfirmPublishCanvasParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	info, err := d.services.Canvas.ConfirmPublish(ctx, params.CanvasID, userID, params.Signature, params.CanvasPDA)
	if err != nil {
		return nil, err
	}
	pda := ""
	if info.CanvasPDA != nil {
		pda = *info.CanvasPDA
	}
	return map[string]any{
		"success":    true,
		"state":      "published",
		"canvas_pda": pda,
	}, nil
}

func (d *Dispatcher) cancelPublishCanvas(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := d.services.Canvas.CancelPublish(ctx, params.CanvasID, userID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "state": "draft"}, nil
}

func (d *Dispatcher) deleteCanvas(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := d.services.Canvas.Delete(ctx, params.CanvasID, userID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (d *Dispatcher) placePixel(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[PlacePixelBidParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	result, err := d.services.Pixel.Place(ctx, params.CanvasID, userID, params.X, params.Y, params.Color, params.BidLamports)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":               true,
		"x":                     result.X,
		"y":                     result.Y,
		"color":                 result.Color,
		"requires_confirmation": result.RequiresConfirmation,
		"lock_expires_at":       result.LockExpiresAt,
		"previous_owner_wallet": result.PreviousOwnerWallet,
	}, nil
}

func (d *Dispatcher) confirmPixel(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[ConfirmPixelBidParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	var bid int64
	if params.BidLamports != nil {
		bid = *params.BidLamports
	}
	info, err := d.services.Pixel.ConfirmBid(ctx, pixel.ConfirmRequest{
		CanvasID:    params.CanvasID,
		UserID:      userID,
		X:           params.X,
		Y:           params.Y,
		Color:       params.Color,
		BidLamports: bid,
		Signature:   params.Signature,
	})
	if err != nil {
		return nil, err
	}
	var ownerID *string
	if info.OwnerID != nil {
		id := info.OwnerID.String()
		ownerID = &id
	}
	return map[string]any{
		"success":        true,
		"x":              info.X,
		"y":              info.Y,
		"color":          info.Color,
		"owner_id":       ownerID,
		"price_lamports": info.PriceLamports,
	}, nil
}

func (d *Dispatcher) cancelPixel(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CancelPixelBidParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := d.services.Pixel.CancelBid(ctx, params.CanvasID, userID, params.X, params.Y); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (d *Dispatcher) paintPixel(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[PaintPixelParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	info, err := d.services.Pixel.Paint(ctx, params.CanvasID, userID, params.X, params.Y, params.Color, params.Signature)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success": true,
		"x":       info.X,
		"y":       info.Y,
		"color":   info.Color,
	}, nil
}

func (d *Dispatcher) announceMint(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	seconds, err := d.services.Nft.AnnounceMintCountdown(ctx, params.CanvasID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":           true,
		"state":             "mint_pending",
		"countdown_seconds": seconds,
	}, nil
}

func (d *Dispatcher) cancelMintCountdown(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := d.services.Nft.CancelMintCountdown(ctx, params.CanvasID, userID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true}, nil
}

func (d *Dispatcher) prepareMetadata(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	result, err := d.services.Nft.PrepareMetadata(ctx, params.CanvasID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":              true,
		"metadata_uri":         result.MetadataURI,
		"image_uri":            result.ImageURI,
		"image_gateway_url":    result.ImageGatewayURL,
		"metadata_gateway_url": result.MetadataGatewayURL,
		"creators":             result.Creators,
	}, nil
}

func (d *Dispatcher) mint(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	envelope, err := d.services.Nft.InitiateMint(ctx, params.CanvasID, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"success":     true,
		"state":       "minting",
		"transaction": envelope,
	}, nil
}

func (d *Dispatcher) confirmMint(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[ConfirmNftMintParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	if _, err := d.services.Nft.ConfirmMint(ctx, params.CanvasID, userID, params.Signature, params.MintAddress); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "state": "minted"}, nil
}

func (d *Dispatcher) cancelMint(ctx context.Context, raw json.RawMessage) (any, error) {
	params, err := decode[CanvasIDParams](raw)
	if err != nil {
		return nil, err
	}
	userID, err := d.requireUser(params.AccessToken)
	if err != nil {
		return nil, err
	}
	if err := d.services.Nft.CancelMint(ctx, params.CanvasID, userID); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "state": "published"}, nil
}
