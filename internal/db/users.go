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

const userColumns = "id, wallet_address, username, created_at"

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.WalletAddress, &u.Username, &u.CreatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, wallet string, username *string) (models.User, error) {
	user := models.User{
		ID:            uuid.New(),
		WalletAddress: wallet,
		Username:      username,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, wallet_address, username, created_at) VALUES ($1, $2, $3, $4)`,
		user.ID, user.WalletAddress, user.Username, user.CreatedAt)
	if err != nil {
		return models.User{}, apperr.Database(err)
	}
	return user, nil
}

func (s *Store) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return &u, nil
}

func (s *Store) FindUserByWallet(ctx context.Context, wallet string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, wallet)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return &u, nil
}

func (s *Store) FindUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Database(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return users, nil
}

// ExistingUserByWalletOrUsername reports (walletExists, usernameExists) in a
// single round trip so register can distinguish the two conflicts.
func (s *Store) ExistingUserByWalletOrUsername(ctx context.Context, wallet string, username *string) (bool, bool, error) {
	var walletExists, usernameExists bool
	err := s.pool.QueryRow(ctx,
		`SELECT
			EXISTS (SELECT 1 FROM users WHERE wallet_address = $1),
			EXISTS (SELECT 1 FROM users WHERE username = $2 AND $2 IS NOT NULL)`,
		wallet, username).Scan(&walletExists, &usernameExists)
	if err != nil {
		return false, false, apperr.Database(err)
	}
	return walletExists, usernameExists, nil
}
