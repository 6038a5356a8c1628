package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	JWT       JwtConfig
	Canvas    CanvasConfig
	Solana    SolanaConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Host                  string   `envconfig:"HOST" default:"127.0.0.1"`
	Port                  uint16   `envconfig:"PORT" default:"8080"`
	PublicURL             string   `envconfig:"SERVER_PUBLIC_URL" default:"http://127.0.0.1:8080"`
	CorsAllowedOrigins    []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	MaxConcurrentRequests int      `envconfig:"SERVER_MAX_CONCURRENT_REQUESTS" default:"256"`
}

type DatabaseConfig struct {
	URL                string `envconfig:"DATABASE_URL" required:"true"`
	MaxConnections     int32  `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	MinConnections     int32  `envconfig:"DB_MIN_CONNECTIONS" default:"2"`
	ConnectTimeoutSecs uint64 `envconfig:"DB_CONNECT_TIMEOUT_SECS" default:"10"`
	IdleTimeoutSecs    uint64 `envconfig:"DB_IDLE_TIMEOUT_SECS" default:"300"`
}

type CacheConfig struct {
	URL                string `envconfig:"CACHE_URL" default:"redis://127.0.0.1:6379"`
	PoolSize           int    `envconfig:"CACHE_POOL_SIZE" default:"16"`
	ConnectTimeoutSecs uint64 `envconfig:"CACHE_CONNECT_TIMEOUT_SECS" default:"5"`

	LocalCanvasMaxCapacity uint64 `envconfig:"CACHE_LOCAL_CANVAS_MAX_CAPACITY" default:"500"`
	LocalCanvasShortTTL    uint64 `envconfig:"CACHE_LOCAL_CANVAS_SHORT_TTL" default:"60"`
	LocalCanvasMidTTL      uint64 `envconfig:"CACHE_LOCAL_CANVAS_MID_TTL" default:"300"`
	LocalPixelsMaxCapacity uint64 `envconfig:"CACHE_LOCAL_PIXELS_MAX_CAPACITY" default:"100"`
	LocalPixelsShortTTL    uint64 `envconfig:"CACHE_LOCAL_PIXELS_SHORT_TTL" default:"60"`
	LocalPixelsMidTTL      uint64 `envconfig:"CACHE_LOCAL_PIXELS_MID_TTL" default:"300"`

	RedisShortTTL uint64 `envconfig:"CACHE_REDIS_SHORT_TTL" default:"60"`
	RedisMidTTL   uint64 `envconfig:"CACHE_REDIS_MID_TTL" default:"300"`
}

type JwtConfig struct {
	Secret         string `envconfig:"JWT_SECRET" required:"true"`
	AccessTTLSecs  uint64 `envconfig:"JWT_ACCESS_TTL_SECS" default:"900"`
	RefreshTTLSecs uint64 `envconfig:"JWT_REFRESH_TTL_SECS" default:"604800"`
}

type CanvasConfig struct {
	MaxNameLength     int    `envconfig:"MAX_CANVAS_NAME_LENGTH" default:"32"`
	Width             uint8  `envconfig:"CANVAS_WIDTH" default:"32"`
	Height            uint8  `envconfig:"CANVAS_HEIGHT" default:"32"`
	Colors            uint8  `envconfig:"CANVAS_COLORS" default:"64"`
	MinBidLamports    uint64 `envconfig:"MIN_BID_LAMPORTS" default:"1000000"`
	CooldownMs        uint64 `envconfig:"PIXEL_COOLDOWN_MS" default:"5000"`
	MaxCollaborators  int    `envconfig:"MAX_COLLABORATORS" default:"50"`
	LockMs            uint64 `envconfig:"PIXEL_LOCK_MS" default:"30000"`
	MintCountdownSecs uint8  `envconfig:"MINT_COUNTDOWN_SECS" default:"60"`
}

type SolanaConfig struct {
	RpcURL           string `envconfig:"SOLANA_RPC_URL" default:"https://api.devnet.solana.com"`
	ProgramID        string `envconfig:"SOLANA_PROGRAM_ID" required:"true"`
	Commitment       string `envconfig:"SOLANA_COMMITMENT" default:"confirmed"`
	BlockhashTTLSecs uint64 `envconfig:"SOLANA_BLOCKHASH_TTL" default:"15"`
}

type RateLimitConfig struct {
	Auth   uint32 `envconfig:"RATE_LIMIT_AUTH" default:"10"`
	Pixel  uint32 `envconfig:"RATE_LIMIT_PIXEL" default:"60"`
	Canvas uint32 `envconfig:"RATE_LIMIT_CANVAS" default:"20"`
	Solana uint32 `envconfig:"RATE_LIMIT_SOLANA" default:"10"`
}

// Load reads the full configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Canvas.Width == 0 || c.Canvas.Height == 0 {
		return fmt.Errorf("canvas dimensions must be non-zero")
	}
	if c.Canvas.Colors == 0 || c.Canvas.Colors > 64 {
		return fmt.Errorf("CANVAS_COLORS must be in 1..=64 (6-bit packing)")
	}
	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS exceeds DB_MAX_CONNECTIONS")
	}
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		return fmt.Errorf("SERVER_PUBLIC_URL must be an http(s) URL")
	}
	return nil
}

func (c *JwtConfig) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLSecs) * time.Second
}

func (c *JwtConfig) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLSecs) * time.Second
}

// SecureCookies reports whether auth cookies should carry the Secure flag.
func (c *ServerConfig) SecureCookies() bool {
	return strings.HasPrefix(c.PublicURL, "https://")
}
