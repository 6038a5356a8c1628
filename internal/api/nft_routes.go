package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/pixel-archives/internal/logging"
)

// handleNftImage serves the canvas rendered from on-chain account data so
// marketplaces see exactly what was minted. The account is immutable after
// mint, hence the year-long cache.
func (s *Server) handleNftImage(c *gin.Context) {
	canvasID, err := uuid.Parse(c.Param("canvas_id"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid canvas id")
		return
	}

	image, err := s.services.Nft.ChainImage(c.Request.Context(), canvasID)
	if err != nil {
		logging.GetComponentLogger("api").Error("failed to render NFT image", "canvas_id", canvasID, "error", err)
		c.String(http.StatusNotFound, "Canvas not found on-chain")
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, "image/png", image)
}

func (s *Server) handleNftMetadata(c *gin.Context) {
	canvasID, err := uuid.Parse(c.Param("canvas_id"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid canvas id")
		return
	}

	metadata, err := s.services.Nft.MetadataDocument(c.Request.Context(), canvasID)
	if err != nil {
		c.String(http.StatusNotFound, "Metadata not found")
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.JSON(http.StatusOK, metadata)
}
