package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	Clients   int       `json:"clients"`
	Viewers   int       `json:"viewers"`
}

func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   "thinwatcher",
		Timestamp: time.Now(),
		Clients:   r.presence.Registry().Len(),
		Viewers:   r.presence.Hub().SubscriberCount(),
	})
}
