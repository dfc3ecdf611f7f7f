package system

import (
	"time"

	"agentdash/internal/coordinator"
	"agentdash/internal/graph"
	"agentdash/internal/httpx"
	"agentdash/internal/model"

	"github.com/gin-gonic/gin"
)

// Service is the part of the coordinator the system routes need
type Service interface {
	Status() coordinator.Status
	Specs() []model.AgentSpec
	Uptime() time.Duration
}

// Handler serves health, overview and graph metadata
type Handler struct {
	svc Service
}

// NewHandler creates a new system handler
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// Health reports liveness
// GET /health
func (h *Handler) Health(c *gin.Context) {
	httpx.OK(c, gin.H{
		"status": "healthy",
		"uptime": h.svc.Uptime().Round(time.Second).String(),
	})
}

// Status returns agent states and queue counts
// GET /api/status
func (h *Handler) Status(c *gin.Context) {
	httpx.OK(c, h.svc.Status())
}

// Graph describes the agent pipeline
// GET /api/graph/structure
func (h *Handler) Graph(c *gin.Context) {
	httpx.OK(c, graph.Build(h.svc.Specs()))
}
