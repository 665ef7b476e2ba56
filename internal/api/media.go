package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"whatsapp-broadcast/internal/config"
	"whatsapp-broadcast/internal/database"
	"whatsapp-broadcast/internal/gateway"
	"whatsapp-broadcast/internal/media"
	"whatsapp-broadcast/internal/models"
)

type MediaHandler struct {
	Resolver *media.Resolver
	Client   *gateway.Client
	Config   *config.Config
}

func NewMediaHandler(resolver *media.Resolver, client *gateway.Client, cfg *config.Config) *MediaHandler {
	return &MediaHandler{Resolver: resolver, Client: client, Config: cfg}
}

func (h *MediaHandler) creds() gateway.Credentials {
	return gateway.Credentials{UserID: h.Config.GatewayUserID, Token: h.Config.GatewayToken}
}

// Upload runs the two-phase upload. When the binary phase fails the dangling
// session id is returned so the client can resend with session_id set and
// resume from the binary phase.
func (h *MediaHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	ctx := c.Request.Context()
	var handle string
	if sessionID := c.PostForm("session_id"); sessionID != "" {
		handle, err = h.Resolver.ResumeBinary(ctx, h.creds(), sessionID, fileBytes)
	} else {
		mimeType := header.Header.Get("Content-Type")
		handle, err = h.Resolver.Resolve(ctx, h.creds(), header.Filename, mimeType, fileBytes)
	}

	if err != nil {
		var binErr *media.BinaryUploadError
		if errors.As(err, &binErr) {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":      binErr.Error(),
				"session_id": binErr.SessionID,
			})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	asset := models.MediaAsset{
		Handle:   handle,
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		FileSize: header.Size,
	}
	if err := database.GormDB.Save(&asset).Error; err != nil {
		log.Error().Err(err).Str("handle", handle).Msg("failed to record media asset")
	}

	c.JSON(http.StatusOK, gin.H{"handle": handle})
}

// List returns previously uploaded media from the gateway for reuse
func (h *MediaHandler) List(c *gin.Context) {
	items, err := h.Client.ListMedia(c.Request.Context(), h.creds())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []gateway.MediaItem{}
	}
	c.JSON(http.StatusOK, items)
}
