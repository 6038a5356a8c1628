package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/pixel-archives/internal/config"
	"github.com/rawblock/pixel-archives/internal/ws"
)

type Server struct {
	cfg        *config.Config
	services   *Services
	dispatcher *Dispatcher
	wsHandler  *ws.Handler
}

func NewServer(cfg *config.Config, services *Services, wsHandler *ws.Handler) *Server {
	return &Server{
		cfg:        cfg,
		services:   services,
		dispatcher: NewDispatcher(services),
		wsHandler:  wsHandler,
	}
}

// Router builds the gin engine: CORS, a concurrency cap, the JSON-RPC
// endpoint, the WebSocket upgrade and the public NFT routes.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(s.corsMiddleware())
	r.Use(concurrencyLimit(s.cfg.Server.MaxConcurrentRequests))

	r.POST("/api", s.rpcHandler)
	r.GET("/ws", s.wsHandler.Handle)

	nft := r.Group("/nft")
	{
		nft.GET("/:canvas_id/image", s.handleNftImage)
		nft.GET("/:canvas_id/image.png", s.handleNftImage)
		nft.GET("/:canvas_id/metadata", s.handleNftMetadata)
		nft.GET("/:canvas_id/metadata.json", s.handleNftMetadata)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "operational"})
	})

	return r
}

// corsMiddleware allows only the configured origins; credentials are always
// enabled because sessions ride in cookies.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	allowed := s.cfg.Server.CorsAllowedOrigins
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		for _, candidate := range allowed {
			if strings.TrimSpace(candidate) == origin {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// concurrencyLimit bounds in-flight requests with a semaphore. Exceeding
// callers queue; the cap protects the DB and KV pools, not the clients.
func concurrencyLimit(limit int) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	semaphore := make(chan struct{}, limit)
	return func(c *gin.Context) {
		semaphore <- struct{}{}
		defer func() { <-semaphore }()
		c.Next()
	}
}
