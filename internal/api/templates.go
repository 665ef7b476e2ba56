package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"whatsapp-broadcast/internal/config"
	"whatsapp-broadcast/internal/database"
	"whatsapp-broadcast/internal/gateway"
	"whatsapp-broadcast/internal/models"
)

type TemplateHandler struct {
	Client *gateway.Client
	Config *config.Config
}

func NewTemplateHandler(client *gateway.Client, cfg *config.Config) *TemplateHandler {
	return &TemplateHandler{Client: client, Config: cfg}
}

func (h *TemplateHandler) creds() gateway.Credentials {
	return gateway.Credentials{UserID: h.Config.GatewayUserID, Token: h.Config.GatewayToken}
}

// SyncTemplates fetches template definitions from the gateway and caches them locally
func (h *TemplateHandler) SyncTemplates(c *gin.Context) {
	templates, err := h.Client.ListTemplates(c.Request.Context(), h.creds())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch templates from gateway: " + err.Error()})
		return
	}

	syncedCount := 0
	for _, tmpl := range templates {
		componentsJSON := "[]"
		if compBytes, err := json.Marshal(tmpl.Components); err == nil {
			componentsJSON = string(compBytes)
		}

		record := models.Template{
			ID:         tmpl.ID,
			Name:       tmpl.Name,
			Language:   tmpl.Language,
			Category:   tmpl.Category,
			Status:     tmpl.Status,
			Components: componentsJSON,
		}

		if err := database.GormDB.Save(&record).Error; err != nil {
			log.Error().Err(err).Str("template", tmpl.Name).Msg("failed to save template")
			continue
		}
		syncedCount++
	}

	c.JSON(http.StatusOK, gin.H{"status": "Templates synced", "count": syncedCount})
}

// GetTemplates returns cached templates from the local database
func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	var templates []models.Template
	if err := database.GormDB.Find(&templates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if templates == nil {
		templates = []models.Template{}
	}
	c.JSON(http.StatusOK, templates)
}

// GetTemplate fetches one template definition from the gateway
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	templateID := c.Param("id")
	tmpl, err := h.Client.GetTemplate(c.Request.Context(), h.creds(), templateID)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tmpl)
}
