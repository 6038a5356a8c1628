package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/pkg/models"
)

const pixelColumns = "canvas_id, x, y, color, owner_id, price_lamports, updated_at"

func scanPixel(row pgx.Row) (models.Pixel, error) {
	var p models.Pixel
	err := row.Scan(&p.CanvasID, &p.X, &p.Y, &p.Color, &p.OwnerID, &p.PriceLamports, &p.UpdatedAt)
	return p, err
}

func (s *Store) FindPixel(ctx context.Context, canvasID uuid.UUID, x, y int16) (*models.Pixel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pixelColumns+` FROM pixels WHERE canvas_id = $1 AND x = $2 AND y = $3`,
		canvasID, x, y)
	p, err := scanPixel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return &p, nil
}

func (s *Store) FindPixelsByCanvas(ctx context.Context, canvasID uuid.UUID) ([]models.Pixel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pixelColumns+` FROM pixels WHERE canvas_id = $1`, canvasID)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var pixels []models.Pixel
	for rows.Next() {
		p, err := scanPixel(rows)
		if err != nil {
			return nil, apperr.Database(err)
		}
		pixels = append(pixels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return pixels, nil
}

// UpsertPixel writes a pixel's color and, when provided, its owner and price.
// Nil owner/price leave the stored values untouched, matching a draft paint
// over an owned pixel keeping its ownership.
func (s *Store) UpsertPixel(ctx context.Context, canvasID uuid.UUID, x, y, color int16, ownerID *uuid.UUID, priceLamports *int64) (models.Pixel, error) {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx,
		`INSERT INTO pixels (canvas_id, x, y, color, owner_id, price_lamports, updated_at)
		 VALUES ($1, $2, $3, $4, $5, COALESCE($6, 0), $7)
		 ON CONFLICT (canvas_id, x, y) DO UPDATE
		 SET color = EXCLUDED.color,
		     owner_id = COALESCE($5, pixels.owner_id),
		     price_lamports = COALESCE($6, pixels.price_lamports),
		     updated_at = EXCLUDED.updated_at
		 RETURNING `+pixelColumns,
		canvasID, x, y, color, ownerID, priceLamports, now)
	p, err := scanPixel(row)
	if err != nil {
		return models.Pixel{}, apperr.Database(err)
	}
	return p, nil
}

// TopPixelOwners returns up to limit owners ranked by total lamports staked
// across their pixels on the canvas.
func (s *Store) TopPixelOwners(ctx context.Context, canvasID uuid.UUID, limit int) ([]models.PixelOwnerTotal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner_id, SUM(price_lamports) AS total_lamports
		 FROM pixels
		 WHERE canvas_id = $1 AND owner_id IS NOT NULL
		 GROUP BY owner_id
		 ORDER BY total_lamports DESC
		 LIMIT $2`, canvasID, limit)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var totals []models.PixelOwnerTotal
	for rows.Next() {
		var t models.PixelOwnerTotal
		if err := rows.Scan(&t.OwnerID, &t.TotalLamports); err != nil {
			return nil, apperr.Database(err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return totals, nil
}
