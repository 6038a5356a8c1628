package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/cache"
	"github.com/rawblock/pixel-archives/internal/db"
	"github.com/rawblock/pixel-archives/internal/logging"
)

type Operation int

const (
	OpLogin Operation = iota
	OpRegister
)

type UserResponse struct {
	ID            string  `json:"id"`
	WalletAddress string  `json:"wallet_address"`
	Username      *string `json:"username"`
}

type AuthResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         UserResponse `json:"user"`
}

// Service implements the register/login/logout/refresh flows on top of the
// JWT service, the user repository and the remote KV (sessions, blacklists,
// nonces).
type Service struct {
	store  *db.Store
	remote cache.RemoteStore
	jwt    *JwtService
}

func NewService(store *db.Store, remote cache.RemoteStore, jwt *JwtService) *Service {
	return &Service{store: store, remote: remote, jwt: jwt}
}

// Authenticate handles both register and login: the wallet proves ownership
// by signing a fresh "pixel:{wallet}:{ts}:{nonce}" message.
func (s *Service) Authenticate(ctx context.Context, op Operation, wallet string, username *string, message, signature string) (AuthResponse, error) {
	if err := ValidateWalletAddress(wallet); err != nil {
		return AuthResponse{}, err
	}

	authMsg, err := ParseAuthMessage(message)
	if err != nil {
		return AuthResponse{}, err
	}
	if authMsg.Wallet != wallet {
		return AuthResponse{}, apperr.InvalidParams("Wallet mismatch in message")
	}

	if err := VerifySignature(wallet, message, signature); err != nil {
		return AuthResponse{}, err
	}

	if err := CheckAndConsumeNonce(ctx, s.remote, wallet, authMsg.Nonce); err != nil {
		return AuthResponse{}, err
	}

	var user UserResponse
	switch op {
	case OpLogin:
		found, err := s.store.FindUserByWallet(ctx, wallet)
		if err != nil {
			return AuthResponse{}, err
		}
		if found == nil {
			return AuthResponse{}, apperr.UserNotFound
		}
		user = UserResponse{ID: found.ID.String(), WalletAddress: found.WalletAddress, Username: found.Username}
	case OpRegister:
		walletExists, usernameExists, err := s.store.ExistingUserByWalletOrUsername(ctx, wallet, username)
		if err != nil {
			return AuthResponse{}, err
		}
		if walletExists {
			return AuthResponse{}, apperr.UserExists
		}
		if usernameExists {
			return AuthResponse{}, apperr.UsernameExists
		}
		created, err := s.store.CreateUser(ctx, wallet, username)
		if err != nil {
			return AuthResponse{}, err
		}
		user = UserResponse{ID: created.ID.String(), WalletAddress: created.WalletAddress, Username: created.Username}
	}

	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return AuthResponse{}, apperr.Internalf("parsing user id: %w", err)
	}

	accessToken, err := s.jwt.CreateAccessToken(userID, user.WalletAddress)
	if err != nil {
		return AuthResponse{}, err
	}
	refreshToken, err := s.jwt.CreateRefreshToken(userID, user.WalletAddress)
	if err != nil {
		return AuthResponse{}, err
	}

	// Session caching is best-effort; a failed write only costs a DB read
	// on the next refresh.
	if err := s.remote.SetJSON(ctx, cache.UserSessionKey(userID), &user, s.jwt.RefreshTTL()); err != nil {
		logging.GetComponentLogger("auth").Warn("failed to cache user session", "error", err)
	}

	return AuthResponse{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}

// blacklistToken records the token's jti for its remaining lifetime.
func (s *Service) blacklistToken(ctx context.Context, claims *Claims) {
	if claims.ExpiresAt == nil {
		return
	}
	ttl, ok := RemainingTTL(claims.ExpiresAt.Time)
	if !ok {
		return
	}
	if err := s.remote.SetJSON(ctx, cache.TokenBlacklistKey(claims.ID), true, ttl); err != nil {
		logging.GetComponentLogger("auth").Warn("failed to blacklist token", "error", err)
	}
}

// Logout blacklists the access token (and the refresh token when present)
// and drops the cached session.
func (s *Service) Logout(ctx context.Context, accessToken string, refreshToken *string) error {
	claims, err := s.jwt.ValidateToken(accessToken, TokenAccess)
	if err != nil {
		return err
	}
	s.blacklistToken(ctx, claims)

	if refreshToken != nil {
		if refreshClaims, err := s.jwt.ValidateToken(*refreshToken, TokenRefresh); err == nil {
			s.blacklistToken(ctx, refreshClaims)
		}
	}

	userID, err := claims.UserID()
	if err == nil {
		if err := s.remote.Delete(ctx, cache.UserSessionKey(userID)); err != nil {
			logging.GetComponentLogger("auth").Warn("failed to delete user session", "error", err)
		}
	}
	return nil
}

// Refresh rotates both tokens. The presented refresh token is blacklisted so
// it cannot be replayed; an already-blacklisted jti is rejected outright.
func (s *Service) Refresh(ctx context.Context, accessToken string, refreshToken *string) (AuthResponse, error) {
	// The old access token may already be expired; blacklist it only if it
	// still validates.
	if claims, err := s.jwt.ValidateToken(accessToken, TokenAccess); err == nil {
		s.blacklistToken(ctx, claims)
	}

	if refreshToken == nil {
		return AuthResponse{}, apperr.InvalidParams("refresh_token is required")
	}
	refreshClaims, err := s.jwt.ValidateToken(*refreshToken, TokenRefresh)
	if err != nil {
		return AuthResponse{}, err
	}

	var blacklisted bool
	found, err := s.remote.GetJSON(ctx, cache.TokenBlacklistKey(refreshClaims.ID), &blacklisted)
	if err != nil {
		return AuthResponse{}, err
	}
	if found && blacklisted {
		return AuthResponse{}, apperr.Unauthorized
	}
	s.blacklistToken(ctx, refreshClaims)

	userID, err := refreshClaims.UserID()
	if err != nil {
		return AuthResponse{}, apperr.Unauthorized
	}

	sessionKey := cache.UserSessionKey(userID)
	var user UserResponse
	hit, err := s.remote.GetJSON(ctx, sessionKey, &user)
	if err != nil {
		return AuthResponse{}, err
	}
	if !hit {
		found, err := s.store.FindUserByID(ctx, userID)
		if err != nil {
			return AuthResponse{}, err
		}
		if found == nil {
			return AuthResponse{}, apperr.UserNotFound
		}
		user = UserResponse{ID: found.ID.String(), WalletAddress: found.WalletAddress, Username: found.Username}
	}

	newAccess, err := s.jwt.CreateAccessToken(userID, refreshClaims.Wallet)
	if err != nil {
		return AuthResponse{}, err
	}
	newRefresh, err := s.jwt.CreateRefreshToken(userID, refreshClaims.Wallet)
	if err != nil {
		return AuthResponse{}, err
	}

	if err := s.remote.SetJSON(ctx, sessionKey, &user, s.jwt.RefreshTTL()); err != nil {
		logging.GetComponentLogger("auth").Warn("failed to refresh user session cache", "error", err)
	}

	return AuthResponse{AccessToken: newAccess, RefreshToken: newRefresh, User: user}, nil
}
