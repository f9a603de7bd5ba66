package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfroyo/folio/pkg/projects"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	DB        string    `json:"db"`
}

type HealthHandler struct {
	svc         *projects.Service
	serviceName string
	version     string
}

func NewHealthHandler(svc *projects.Service, serviceName, version string) *HealthHandler {
	return &HealthHandler{
		svc:         svc,
		serviceName: serviceName,
		version:     version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		DB:        "up",
	}
	code := http.StatusOK

	if err := h.svc.Health(pingCtx); err != nil {
		resp.Status = "unhealthy"
		resp.DB = "down"
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, resp)
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
