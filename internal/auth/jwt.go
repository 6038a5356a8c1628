// Package auth covers session issuance: JWT minting/validation, wallet
// signature verification and nonce replay protection.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/config"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// CookieName returns the cookie the token type travels in.
func (t TokenType) CookieName() string {
	if t == TokenRefresh {
		return "refresh_token"
	}
	return "access_token"
}

type Claims struct {
	Wallet    string    `json:"wallet"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

type JwtService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewJwtService(cfg *config.JwtConfig) *JwtService {
	return &JwtService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
	}
}

func (s *JwtService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *JwtService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *JwtService) createToken(userID uuid.UUID, wallet string, tokenType TokenType, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Wallet:    wallet,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", apperr.Internalf("signing token: %w", err)
	}
	return signed, nil
}

func (s *JwtService) CreateAccessToken(userID uuid.UUID, wallet string) (string, error) {
	return s.createToken(userID, wallet, TokenAccess, s.accessTTL)
}

func (s *JwtService) CreateRefreshToken(userID uuid.UUID, wallet string) (string, error) {
	return s.createToken(userID, wallet, TokenRefresh, s.refreshTTL)
}

// ValidateToken parses and checks the token, rejecting a type mismatch so a
// refresh token can never be presented as an access token.
func (s *JwtService) ValidateToken(token string, expected TokenType) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.TokenExpired
		}
		return nil, apperr.Unauthorized
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.TokenType != expected {
		return nil, apperr.Unauthorized
	}
	return claims, nil
}
