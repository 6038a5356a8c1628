// Package nft covers metadata assembly, the mint lifecycle, and the
// trustless image/metadata endpoints.
package nft

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/cache"
	"github.com/rawblock/pixel-archives/internal/canvas"
	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/internal/db"
	"github.com/rawblock/pixel-archives/internal/solana"
	"github.com/rawblock/pixel-archives/internal/ws"
	"github.com/rawblock/pixel-archives/pkg/models"
)

// Canvas account layout on-chain (835 bytes total):
//   0-7    discriminator
//   8-39   owner pubkey
//   40-55  canvas id (16 bytes)
//   56     state
//   57     width
//   58     height
//   59-66  total escrow
//   67-834 pixel colors, 6-bit packed (768 bytes)
const (
	pixelColorsOffset = 67
	pixelColorsSize   = canvas.PackedSize
)

type MetadataResult struct {
	MetadataURI        string    `json:"metadata_uri"`
	ImageURI           string    `json:"image_uri"`
	ImageGatewayURL    string    `json:"image_gateway_url"`
	MetadataGatewayURL string    `json:"metadata_gateway_url"`
	Creators           []Creator `json:"creators"`
}

type MintTransactionInfo struct {
	CanvasID   uuid.UUID `json:"canvas_id"`
	CanvasPDA  string    `json:"canvas_pda"`
	ConfigPDA  string    `json:"config_pda"`
	ProgramID  string    `json:"program_id"`
	Blockhash  string    `json:"blockhash"`
	CanvasName string    `json:"canvas_name"`
}

type MintResult struct {
	CanvasID    uuid.UUID          `json:"canvas_id"`
	MintAddress *string            `json:"mint_address"`
	State       models.CanvasState `json:"state"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type ImageFile struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}

type Properties struct {
	Files    []ImageFile `json:"files"`
	Category string      `json:"category"`
	Creators []Creator   `json:"creators"`
}

type Metadata struct {
	Name                 string      `json:"name"`
	Symbol               string      `json:"symbol"`
	Description          string      `json:"description"`
	Image                string      `json:"image"`
	SellerFeeBasisPoints uint16      `json:"seller_fee_basis_points"`
	Attributes           []Attribute `json:"attributes"`
	Properties           Properties  `json:"properties"`
}

type Service struct {
	store  *db.Store
	remote cache.RemoteStore
	chain  *solana.Client
	rooms  *ws.Manager
	cfg    *config.Config
}

func NewService(store *db.Store, remote cache.RemoteStore, chain *solana.Client, rooms *ws.Manager, cfg *config.Config) *Service {
	return &Service{store: store, remote: remote, chain: chain, rooms: rooms, cfg: cfg}
}

func (s *Service) ownedCanvas(ctx context.Context, canvasID, userID uuid.UUID) (models.Canvas, error) {
	canvas, err := s.store.FindCanvasByID(ctx, canvasID)
	if err != nil {
		return models.Canvas{}, err
	}
	if canvas == nil {
		return models.Canvas{}, apperr.CanvasNotFound
	}
	if canvas.OwnerID != userID {
		return models.Canvas{}, apperr.NotOwner
	}
	return *canvas, nil
}

// AnnounceMintCountdown freezes bidding for the countdown window. The
// canvas lock (60 s) doubles as the idempotence guard: a concurrent announce
// that loses the lock fails with PixelLocked, and an announce after the
// canvas is already MintPending fails the state check with
// InvalidStateTransition.
func (s *Service) AnnounceMintCountdown(ctx context.Context, canvasID, userID uuid.UUID) (uint8, error) {
	canvas, err := s.ownedCanvas(ctx, canvasID, userID)
	if err != nil {
		return 0, err
	}
	if canvas.State != models.CanvasPublished {
		return 0, apperr.InvalidStateTransition
	}

	lockKey := cache.CanvasLockKey(canvasID)
	acquired, err := s.remote.SetNX(ctx, lockKey, 60*time.Second)
	if err != nil {
		return 0, err
	}
	if !acquired {
		return 0, apperr.PixelLocked
	}

	if _, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasMintPending, nil); err != nil {
		return 0, err
	}

	seconds := s.cfg.Canvas.MintCountdownSecs
	s.rooms.Broadcast(canvasID, ws.MintCountdown(seconds))
	return seconds, nil
}

// CancelMintCountdown reopens bidding before the countdown elapses.
func (s *Service) CancelMintCountdown(ctx context.Context, canvasID, userID uuid.UUID) error {
	canvas, err := s.ownedCanvas(ctx, canvasID, userID)
	if err != nil {
		return err
	}
	if canvas.State != models.CanvasMintPending {
		return apperr.InvalidParams("Canvas not in mint pending state")
	}

	if err := s.remote.Delete(ctx, cache.CanvasLockKey(canvasID)); err != nil {
		return err
	}

	if _, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasPublished, nil); err != nil {
		return err
	}

	s.rooms.Broadcast(canvasID, ws.MintCountdownCancelled())
	return nil
}

// PrepareMetadata assembles the metadata the owner embeds in the mint
// transaction: a data-URI image plus the creator share split.
func (s *Service) PrepareMetadata(ctx context.Context, canvasID, userID uuid.UUID) (MetadataResult, error) {
	canvas, err := s.ownedCanvas(ctx, canvasID, userID)
	if err != nil {
		return MetadataResult{}, err
	}
	if canvas.State != models.CanvasPublished && canvas.State != models.CanvasMintPending {
		return MetadataResult{}, apperr.InvalidParams("Canvas must be published to prepare metadata")
	}

	pixels, err := s.store.FindPixelsByCanvas(ctx, canvasID)
	if err != nil {
		return MetadataResult{}, err
	}
	imageData, err := GeneratePNG(pixels)
	if err != nil {
		return MetadataResult{}, apperr.Internalf("PNG encode: %w", err)
	}
	imageDataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(imageData)

	owner, err := s.store.FindUserByID(ctx, canvas.OwnerID)
	if err != nil {
		return MetadataResult{}, err
	}
	if owner == nil {
		return MetadataResult{}, apperr.UserNotFound
	}

	top, err := s.store.TopPixelOwners(ctx, canvasID, topClaimers)
	if err != nil {
		return MetadataResult{}, err
	}

	otherIDs := make([]uuid.UUID, 0, len(top))
	for _, t := range top {
		if t.OwnerID != canvas.OwnerID {
			otherIDs = append(otherIDs, t.OwnerID)
		}
	}
	others, err := s.store.FindUsersByIDs(ctx, otherIDs)
	if err != nil {
		return MetadataResult{}, err
	}
	wallets := make(map[uuid.UUID]string, len(others))
	for _, u := range others {
		wallets[u.ID] = u.WalletAddress
	}

	creators := ComputeCreatorShares(canvas.OwnerID, owner.WalletAddress, top, wallets)

	return MetadataResult{
		MetadataURI:     fmt.Sprintf("%s/nft/%s/metadata.json", s.cfg.Server.PublicURL, canvasID),
		ImageURI:        imageDataURI,
		ImageGatewayURL: imageDataURI,
		Creators:        creators,
	}, nil
}

// InitiateMint moves MintPending → Minting and returns the mint envelope.
func (s *Service) InitiateMint(ctx context.Context, canvasID, userID uuid.UUID) (MintTransactionInfo, error) {
	canvas, err := s.ownedCanvas(ctx, canvasID, userID)
	if err != nil {
		return MintTransactionInfo{}, err
	}
	if canvas.State != models.CanvasMintPending {
		return MintTransactionInfo{}, apperr.InvalidStateTransition
	}

	if _, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasMinting, nil); err != nil {
		return MintTransactionInfo{}, err
	}

	s.rooms.Broadcast(canvasID, ws.MintingStarted())

	if canvas.CanvasPDA == nil {
		return MintTransactionInfo{}, apperr.InvalidParams("Canvas not published on-chain")
	}

	configPDA, _, err := s.chain.DeriveConfigPDA()
	if err != nil {
		return MintTransactionInfo{}, apperr.Internalf("derive config PDA: %w", err)
	}
	blockhash, err := s.chain.RecentBlockhash(ctx)
	if err != nil {
		return MintTransactionInfo{}, apperr.SolanaRpc(err)
	}

	return MintTransactionInfo{
		CanvasID:   canvasID,
		CanvasPDA:  *canvas.CanvasPDA,
		ConfigPDA:  configPDA.String(),
		ProgramID:  s.chain.ProgramID().String(),
		Blockhash:  blockhash.String(),
		CanvasName: canvas.Name,
	}, nil
}

// ConfirmMint verifies the mint transaction, stamps the mint address and
// releases the canvas lock.
func (s *Service) ConfirmMint(ctx context.Context, canvasID, userID uuid.UUID, signature, mintAddress string) (MintResult, error) {
	if _, err := s.ownedCanvas(ctx, canvasID, userID); err != nil {
		return MintResult{}, err
	}

	valid, err := s.chain.VerifyProgramTransaction(ctx, signature)
	if err != nil {
		return MintResult{}, err
	}
	if !valid {
		return MintResult{}, apperr.TransactionFailed("Transaction verification failed")
	}

	updated, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasMinted, func(c *models.Canvas) {
		now := time.Now().UTC()
		c.MintedAt = &now
		addr := mintAddress
		c.MintAddress = &addr
	})
	if err != nil {
		return MintResult{}, err
	}

	if err := s.remote.Delete(ctx, cache.CanvasLockKey(canvasID)); err != nil {
		return MintResult{}, err
	}

	s.rooms.Broadcast(canvasID, ws.Minted(mintAddress))

	return MintResult{
		CanvasID:    canvasID,
		MintAddress: updated.MintAddress,
		State:       updated.State,
	}, nil
}

// CancelMint rolls Minting back to Published and releases the lock.
func (s *Service) CancelMint(ctx context.Context, canvasID, userID uuid.UUID) error {
	if _, err := s.ownedCanvas(ctx, canvasID, userID); err != nil {
		return err
	}

	if _, err := s.store.UpdateCanvasState(ctx, canvasID, models.CanvasPublished, nil); err != nil {
		return err
	}

	if err := s.remote.Delete(ctx, cache.CanvasLockKey(canvasID)); err != nil {
		return err
	}

	s.rooms.Broadcast(canvasID, ws.MintingFailed("Cancelled by user"))
	return nil
}

// MetadataDocument builds the public metadata JSON, served only for minted
// canvases.
func (s *Service) MetadataDocument(ctx context.Context, canvasID uuid.UUID) (Metadata, error) {
	canvas, err := s.store.FindCanvasByID(ctx, canvasID)
	if err != nil {
		return Metadata{}, err
	}
	if canvas == nil {
		return Metadata{}, apperr.CanvasNotFound
	}
	if canvas.State != models.CanvasMinted {
		return Metadata{}, apperr.InvalidParams("Canvas is not minted")
	}

	owner, err := s.store.FindUserByID(ctx, canvas.OwnerID)
	if err != nil {
		return Metadata{}, err
	}
	if owner == nil {
		return Metadata{}, apperr.UserNotFound
	}

	pixels, err := s.store.FindPixelsByCanvas(ctx, canvasID)
	if err != nil {
		return Metadata{}, err
	}
	claimed := 0
	for _, p := range pixels {
		if p.OwnerID != nil {
			claimed++
		}
	}

	imageURL := fmt.Sprintf("%s/nft/%s/image.png", s.cfg.Server.PublicURL, canvasID)

	return Metadata{
		Name:                 canvas.Name,
		Symbol:               "PIXEL",
		Description:          fmt.Sprintf("%s: 32x32 collaborative pixel art canvas.", canvas.Name),
		Image:                imageURL,
		SellerFeeBasisPoints: 500,
		Attributes: []Attribute{
			{TraitType: "Width", Value: fmt.Sprintf("%d", s.cfg.Canvas.Width)},
			{TraitType: "Height", Value: fmt.Sprintf("%d", s.cfg.Canvas.Height)},
			{TraitType: "Pixels Claimed", Value: fmt.Sprintf("%d", claimed)},
		},
		Properties: Properties{
			Files:    []ImageFile{{URI: imageURL, Type: "image/png"}},
			Category: "image",
			Creators: []Creator{{Address: owner.WalletAddress, Share: 100}},
		},
	}, nil
}

// ChainImage renders the canvas strictly from on-chain account data so the
// served image cannot disagree with what was minted.
func (s *Service) ChainImage(ctx context.Context, canvasID uuid.UUID) ([]byte, error) {
	pda, _, err := s.chain.DeriveCanvasPDA(canvasID)
	if err != nil {
		return nil, apperr.Internalf("derive canvas PDA: %w", err)
	}

	accountData, err := s.chain.AccountData(ctx, pda)
	if err != nil {
		return nil, apperr.SolanaRpc(err)
	}
	if len(accountData) < pixelColorsOffset+pixelColorsSize {
		return nil, apperr.Internalf("canvas account data too short: %d bytes", len(accountData))
	}

	packed := accountData[pixelColorsOffset : pixelColorsOffset+pixelColorsSize]
	image, err := GeneratePNGFromColors(canvas.UnpackColors(packed))
	if err != nil {
		return nil, apperr.Internalf("PNG encode: %w", err)
	}
	return image, nil
}
