package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm/clause"

	"whatsapp-broadcast/internal/config"
	"whatsapp-broadcast/internal/database"
	"whatsapp-broadcast/internal/dispatch"
	"whatsapp-broadcast/internal/gateway"
	"whatsapp-broadcast/internal/models"
	"whatsapp-broadcast/internal/template"
	"whatsapp-broadcast/internal/ws"
)

type BroadcastHandler struct {
	Client *gateway.Client
	Config *config.Config
	Hub    *ws.Hub
	Log    zerolog.Logger
}

func NewBroadcastHandler(client *gateway.Client, cfg *config.Config, hub *ws.Hub, log zerolog.Logger) *BroadcastHandler {
	return &BroadcastHandler{Client: client, Config: cfg, Hub: hub, Log: log}
}

func (h *BroadcastHandler) creds() gateway.Credentials {
	return gateway.Credentials{UserID: h.Config.GatewayUserID, Token: h.Config.GatewayToken}
}

// loadDefinition resolves a template definition from the local cache, falling
// back to the gateway when it is not cached yet.
func (h *BroadcastHandler) loadDefinition(ctx context.Context, templateID string) (*gateway.Template, error) {
	var record models.Template
	if err := database.GormDB.First(&record, "id = ?", templateID).Error; err == nil {
		components, err := template.ParseStoredComponents(record.Components)
		if err != nil {
			return nil, err
		}
		return &gateway.Template{
			ID:         record.ID,
			Name:       record.Name,
			Language:   record.Language,
			Category:   record.Category,
			Status:     record.Status,
			Components: components,
		}, nil
	}
	return h.Client.GetTemplate(ctx, h.creds(), templateID)
}

type PreviewRequest struct {
	Variables map[string]string `json:"variables"`
	MediaID   string            `json:"media_id"`
}

// Preview compiles without sending, for author-side draft validation
func (h *BroadcastHandler) Preview(c *gin.Context) {
	templateID := c.Param("id")
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def, err := h.loadDefinition(c.Request.Context(), templateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	segments, err := template.Compile(def, req.Variables, req.MediaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"segments": segments})
}

type SendRequest struct {
	To        string            `json:"to" binding:"required"`
	Variables map[string]string `json:"variables"`
	MediaID   string            `json:"media_id"`
}

// Send compiles and delivers to a single recipient
func (h *BroadcastHandler) Send(c *gin.Context) {
	templateID := c.Param("id")
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	def, err := h.loadDefinition(c.Request.Context(), templateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	segments, err := template.Compile(def, req.Variables, req.MediaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.Client.Send(c.Request.Context(), h.creds(), templateID, req.To, segments)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

type BulkSendRequest struct {
	Recipients []string          `json:"recipients" binding:"required"`
	Variables  map[string]string `json:"variables"`
	MediaID    string            `json:"media_id"`
}

// SendBulk compiles once and fans out to every recipient, blocking until the
// gateway reports the whole batch processed. Progress snapshots stream to
// websocket clients while the batch is in flight.
func (h *BroadcastHandler) SendBulk(c *gin.Context) {
	templateID := c.Param("id")
	var req BulkSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Recipients) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one recipient is required"})
		return
	}

	def, err := h.loadDefinition(c.Request.Context(), templateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	segments, err := template.Compile(def, req.Variables, req.MediaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := uuid.NewString()
	orch := h.newOrchestrator(sessionID, templateID)

	results, err := orch.Dispatch(c.Request.Context(), h.creds(), templateID, req.Recipients, segments)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "state": orch.State().String()})
		return
	}

	h.persistResults(sessionID, templateID, results)
	failed := results.Failed()
	h.Hub.NotifyComplete(sessionID, gateway.BulkSummary{
		SuccessCount: len(results) - len(failed),
		FailedCount:  len(failed),
	})

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"results":    results,
		"summary": gin.H{
			"success_count": len(results) - len(failed),
			"failed_count":  len(failed),
		},
	})
}

type RetryRequest struct {
	Variables map[string]string `json:"variables"`
	MediaID   string            `json:"media_id"`
}

// Retry re-dispatches a session's failed recipients only and merges the new
// outcomes into the stored result table
func (h *BroadcastHandler) Retry(c *gin.Context) {
	sessionID := c.Param("session")
	var req RetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var records []models.SendRecord
	if err := database.GormDB.Find(&records, "session_id = ?", sessionID).Error; err != nil || len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown broadcast session"})
		return
	}
	templateID := records[0].TemplateID

	prior := make(dispatch.ResultSet, len(records))
	for _, r := range records {
		result := dispatch.Result{Recipient: r.Recipient, Outcome: dispatch.Outcome(r.Outcome)}
		if r.ErrorDetail != "" {
			result.Error = []byte(r.ErrorDetail)
		}
		prior[r.Recipient] = result
	}

	def, err := h.loadDefinition(c.Request.Context(), templateID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	segments, err := template.Compile(def, req.Variables, req.MediaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	manager := dispatch.NewRetryManager(h.newOrchestrator(sessionID, templateID), h.Log)
	merged, retried, err := manager.Retry(c.Request.Context(), h.creds(), templateID, segments, prior)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if len(retried) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "nothing to retry", "session_id": sessionID})
		return
	}

	h.persistResults(sessionID, templateID, merged)
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"retried":    retried,
		"results":    merged,
	})
}

// Results returns the stored per-recipient outcomes for a session
func (h *BroadcastHandler) Results(c *gin.Context) {
	sessionID := c.Param("session")
	var records []models.SendRecord
	if err := database.GormDB.Find(&records, "session_id = ?", sessionID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown broadcast session"})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *BroadcastHandler) newOrchestrator(sessionID, templateID string) *dispatch.Orchestrator {
	return dispatch.NewOrchestrator(h.Client, dispatch.Options{
		PollInterval:    h.Config.PollInterval,
		MaxPollAttempts: h.Config.PollMaxAttempts,
		Logger:          h.Log,
		OnProgress: func(p gateway.Progress) {
			h.Hub.NotifyProgress(sessionID, templateID, p)
		},
	})
}

// persistResults upserts one row per (session, recipient); retried
// recipients overwrite their previous outcome.
func (h *BroadcastHandler) persistResults(sessionID, templateID string, results dispatch.ResultSet) {
	for _, result := range results {
		record := models.SendRecord{
			SessionID:   sessionID,
			TemplateID:  templateID,
			Recipient:   result.Recipient,
			Outcome:     string(result.Outcome),
			ErrorDetail: string(result.Error),
		}
		err := database.GormDB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}, {Name: "recipient"}},
			DoUpdates: clause.AssignmentColumns([]string{"outcome", "error_detail", "updated_at"}),
		}).Create(&record).Error
		if err != nil {
			h.Log.Error().Err(err).
				Str("session_id", sessionID).
				Str("recipient", result.Recipient).
				Msg("failed to persist send record")
		}
	}
}
