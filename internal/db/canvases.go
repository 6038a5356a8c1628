package db

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/pkg/models"
)

const canvasColumns = "id, owner_id, name, invite_code, state, canvas_pda, mint_address, total_escrowed, created_at, published_at, minted_at"

// inviteCodeCharset omits I to avoid 1/I ambiguity in shared codes.
const inviteCodeCharset = "ABCDEFGHJKLMNOPQRSTUVWXYZ0123456789"

// GenerateInviteCode returns an 8-character code from the invite alphabet
// using crypto/rand so codes are not guessable.
func GenerateInviteCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// rand.Read failing means the platform RNG is broken; there is no
		// reasonable fallback for a shareable secret.
		panic("crypto/rand unavailable: " + err.Error())
	}
	code := make([]byte, 8)
	for i, b := range buf {
		code[i] = inviteCodeCharset[int(b)%len(inviteCodeCharset)]
	}
	return string(code)
}

func scanCanvas(row pgx.Row) (models.Canvas, error) {
	var c models.Canvas
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.InviteCode, &c.State, &c.CanvasPDA,
		&c.MintAddress, &c.TotalEscrowed, &c.CreatedAt, &c.PublishedAt, &c.MintedAt)
	return c, err
}

// CreateCanvas inserts the canvas, registers the owner as a collaborator and
// materialises all width*height pixels in one transaction.
func (s *Store) CreateCanvas(ctx context.Context, ownerID uuid.UUID, name string, width, height uint8, initialColor int16) (models.Canvas, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	canvas := models.Canvas{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Name:       name,
		InviteCode: GenerateInviteCode(),
		State:      models.CanvasDraft,
		CreatedAt:  now,
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO canvases (id, owner_id, name, invite_code, state, total_escrowed, created_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6)`,
		canvas.ID, canvas.OwnerID, canvas.Name, canvas.InviteCode, canvas.State, canvas.CreatedAt)
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO canvas_collaborators (canvas_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		canvas.ID, ownerID, now)
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}

	// Batch insert via COPY: 1024 single-row INSERTs per canvas would be the
	// dominant cost of creation.
	pixelRows := make([][]any, 0, int(width)*int(height))
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			pixelRows = append(pixelRows, []any{canvas.ID, int16(x), int16(y), initialColor, nil, int64(0), now})
		}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"pixels"},
		[]string{"canvas_id", "x", "y", "color", "owner_id", "price_lamports", "updated_at"},
		pgx.CopyFromRows(pixelRows))
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Canvas{}, apperr.Database(err)
	}
	return canvas, nil
}

func (s *Store) FindCanvasByID(ctx context.Context, id uuid.UUID) (*models.Canvas, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+canvasColumns+` FROM canvases WHERE id = $1`, id)
	c, err := scanCanvas(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return &c, nil
}

func (s *Store) FindCanvasByInviteCode(ctx context.Context, code string) (*models.Canvas, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+canvasColumns+` FROM canvases WHERE invite_code = $1`, code)
	c, err := scanCanvas(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return &c, nil
}

func (s *Store) ListCanvasesByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Canvas, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+canvasColumns+` FROM canvases WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()
	return collectCanvases(rows)
}

// ListCanvasesByCollaborator returns canvases the user collaborates on,
// excluding the ones they own.
func (s *Store) ListCanvasesByCollaborator(ctx context.Context, userID uuid.UUID) ([]models.Canvas, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.owner_id, c.name, c.invite_code, c.state, c.canvas_pda, c.mint_address,
		        c.total_escrowed, c.created_at, c.published_at, c.minted_at
		 FROM canvases c
		 INNER JOIN canvas_collaborators cc ON cc.canvas_id = c.id
		 WHERE cc.user_id = $1 AND c.owner_id <> $1
		 ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()
	return collectCanvases(rows)
}

func collectCanvases(rows pgx.Rows) ([]models.Canvas, error) {
	var canvases []models.Canvas
	for rows.Next() {
		c, err := scanCanvas(rows)
		if err != nil {
			return nil, apperr.Database(err)
		}
		canvases = append(canvases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return canvases, nil
}

func (s *Store) CanvasExistsByNameAndOwner(ctx context.Context, ownerID uuid.UUID, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM canvases WHERE owner_id = $1 AND name = $2)`,
		ownerID, name).Scan(&exists)
	if err != nil {
		return false, apperr.Database(err)
	}
	return exists, nil
}

func (s *Store) IsCanvasCollaborator(ctx context.Context, canvasID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM canvas_collaborators WHERE canvas_id = $1 AND user_id = $2)`,
		canvasID, userID).Scan(&exists)
	if err != nil {
		return false, apperr.Database(err)
	}
	return exists, nil
}

func (s *Store) CountCanvasCollaborators(ctx context.Context, canvasID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM canvas_collaborators WHERE canvas_id = $1`, canvasID).Scan(&count)
	if err != nil {
		return 0, apperr.Database(err)
	}
	return count, nil
}

func (s *Store) AddCanvasCollaborator(ctx context.Context, canvasID, userID uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO canvas_collaborators (canvas_id, user_id, joined_at) VALUES ($1, $2, $3)`,
		canvasID, userID, time.Now().UTC())
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// UpdateCanvasState performs a lifecycle transition under a row-level
// exclusive lock. mutate runs after the transition check and may stamp
// timestamps or addresses before the row is written back.
func (s *Store) UpdateCanvasState(ctx context.Context, id uuid.UUID, target models.CanvasState, mutate func(*models.Canvas)) (models.Canvas, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+canvasColumns+` FROM canvases WHERE id = $1 FOR UPDATE`, id)
	canvas, err := scanCanvas(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Canvas{}, apperr.CanvasNotFound
	}
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}

	if !canvas.State.ValidTransition(target) {
		return models.Canvas{}, apperr.InvalidStateTransition
	}

	canvas.State = target
	if mutate != nil {
		mutate(&canvas)
	}

	_, err = tx.Exec(ctx,
		`UPDATE canvases
		 SET state = $2, canvas_pda = $3, mint_address = $4, total_escrowed = $5,
		     published_at = $6, minted_at = $7
		 WHERE id = $1`,
		canvas.ID, canvas.State, canvas.CanvasPDA, canvas.MintAddress,
		canvas.TotalEscrowed, canvas.PublishedAt, canvas.MintedAt)
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Canvas{}, apperr.Database(err)
	}
	return canvas, nil
}

// AdjustCanvasEscrow applies a delta to the escrow total under the same row
// lock used for state transitions. An outbid refunds the previous owner
// on-chain, so the delta is the difference between the new and old price.
func (s *Store) AdjustCanvasEscrow(ctx context.Context, id uuid.UUID, deltaLamports int64) (models.Canvas, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+canvasColumns+` FROM canvases WHERE id = $1 FOR UPDATE`, id)
	canvas, err := scanCanvas(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Canvas{}, apperr.CanvasNotFound
	}
	if err != nil {
		return models.Canvas{}, apperr.Database(err)
	}

	canvas.TotalEscrowed += deltaLamports
	if canvas.TotalEscrowed < 0 {
		canvas.TotalEscrowed = 0
	}
	if _, err := tx.Exec(ctx,
		`UPDATE canvases SET total_escrowed = $2 WHERE id = $1`, canvas.ID, canvas.TotalEscrowed); err != nil {
		return models.Canvas{}, apperr.Database(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Canvas{}, apperr.Database(err)
	}
	return canvas, nil
}

// DeleteCanvas removes the canvas and cascades to pixels and collaborators in
// one transaction. The Draft-only rule is enforced by the service layer.
func (s *Store) DeleteCanvas(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperr.Database(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM pixels WHERE canvas_id = $1`, id); err != nil {
		return apperr.Database(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM canvas_collaborators WHERE canvas_id = $1`, id); err != nil {
		return apperr.Database(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM canvases WHERE id = $1`, id); err != nil {
		return apperr.Database(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Database(err)
	}
	return nil
}
