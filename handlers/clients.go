package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/RipinDensumite/thinwatcher/models"
	"github.com/RipinDensumite/thinwatcher/services"
	"github.com/RipinDensumite/thinwatcher/utils"
)

type ClientsHandler struct {
	presence *services.PresenceService
	logger   *utils.Logger
}

func NewClientsHandler(presence *services.PresenceService, logger *utils.Logger) *ClientsHandler {
	return &ClientsHandler{
		presence: presence,
		logger:   logger,
	}
}

// UpdateStatus handles POST /api/clients/status
func (h *ClientsHandler) UpdateStatus(c *gin.Context) {
	var req models.StatusReport
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid status report",
			"details": err.Error(),
		})
		return
	}

	pending, err := h.presence.ReportStatus(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StatusReportResponse{
		Status:           "ok",
		TerminateCommand: pending,
	})
}

// ListClients handles GET /api/clients
func (h *ClientsHandler) ListClients(c *gin.Context) {
	c.JSON(http.StatusOK, h.presence.ListClients())
}

// RemoveClient handles DELETE /api/clients/:clientId
func (h *ClientsHandler) RemoveClient(c *gin.Context) {
	clientID := c.Param("clientId")

	if err := h.presence.RemoveClient(c.Request.Context(), clientID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Client removed"})
}

// CheckClient handles GET /api/clients/check-client/:clientId
func (h *ClientsHandler) CheckClient(c *gin.Context) {
	c.JSON(http.StatusOK, models.ClientExistsResponse{
		Exists: h.presence.ClientExists(c.Param("clientId")),
	})
}

// TerminateSession handles POST /api/clients/terminate
func (h *ClientsHandler) TerminateSession(c *gin.Context) {
	var req models.TerminateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.presence.TerminateSession(c.Request.Context(), req.ClientID, req.SessionID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Terminate command sent"})
}

func (h *ClientsHandler) respondError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.Is(err, services.ErrClientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"field":   validationErr.Field,
			"details": validationErr.Message,
		})
	default:
		h.logger.Error("Client request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
