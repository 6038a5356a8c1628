package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/apperr"
	"github.com/rawblock/pixel-archives/internal/config"
)

func testJwtService(accessTTL uint64) *JwtService {
	return NewJwtService(&config.JwtConfig{
		Secret:         "0123456789abcdef0123456789abcdef",
		AccessTTLSecs:  accessTTL,
		RefreshTTLSecs: 3600,
	})
}

func TestJwt_RoundTrip(t *testing.T) {
	svc := testJwtService(900)
	userID := uuid.New()

	token, err := svc.CreateAccessToken(userID, "wallet123")
	if err != nil {
		t.Fatalf("Token creation failed: %v", err)
	}

	claims, err := svc.ValidateToken(token, TokenAccess)
	if err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if claims.Wallet != "wallet123" {
		t.Errorf("Wallet claim wrong: %s", claims.Wallet)
	}
	parsed, err := claims.UserID()
	if err != nil || parsed != userID {
		t.Errorf("Subject should parse back to the user id. Got %v, %v", parsed, err)
	}
	if claims.ID == "" {
		t.Error("jti must be set for blacklisting")
	}
}

func TestJwt_TypeMismatchRejected(t *testing.T) {
	svc := testJwtService(900)
	userID := uuid.New()

	refresh, err := svc.CreateRefreshToken(userID, "wallet123")
	if err != nil {
		t.Fatalf("Token creation failed: %v", err)
	}

	// A refresh token presented as an access token is an attack, not a typo.
	if _, err := svc.ValidateToken(refresh, TokenAccess); !errors.Is(err, apperr.Unauthorized) {
		t.Errorf("Expected Unauthorized for type mismatch. Got: %v", err)
	}
}

func TestJwt_ExpiredToken(t *testing.T) {
	svc := testJwtService(1)
	svc.accessTTL = -time.Second // mint already-expired

	token, err := svc.CreateAccessToken(uuid.New(), "wallet123")
	if err != nil {
		t.Fatalf("Token creation failed: %v", err)
	}

	if _, err := svc.ValidateToken(token, TokenAccess); !errors.Is(err, apperr.TokenExpired) {
		t.Errorf("Expected TokenExpired. Got: %v", err)
	}
}

func TestJwt_GarbageRejected(t *testing.T) {
	svc := testJwtService(900)
	if _, err := svc.ValidateToken("not.a.token", TokenAccess); !errors.Is(err, apperr.Unauthorized) {
		t.Errorf("Expected Unauthorized for garbage. Got: %v", err)
	}
}

func TestJwt_WrongSecretRejected(t *testing.T) {
	svc := testJwtService(900)
	other := NewJwtService(&config.JwtConfig{
		Secret:         "ffffffffffffffffffffffffffffffff",
		AccessTTLSecs:  900,
		RefreshTTLSecs: 3600,
	})

	token, err := svc.CreateAccessToken(uuid.New(), "wallet123")
	if err != nil {
		t.Fatalf("Token creation failed: %v", err)
	}
	if _, err := other.ValidateToken(token, TokenAccess); !errors.Is(err, apperr.Unauthorized) {
		t.Errorf("Token signed with a different secret must be rejected. Got: %v", err)
	}
}
