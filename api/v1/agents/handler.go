package agents

import (
	"agentdash/api/v1/apierr"
	"agentdash/internal/coordinator"
	"agentdash/internal/httpx"
	"agentdash/internal/model"

	"github.com/gin-gonic/gin"
)

// Service is the part of the coordinator the agent routes need
type Service interface {
	Agents() []model.Agent
	AgentProgress(id string) (coordinator.AgentProgress, error)
	AgentLogs(id string) ([]model.LogEntry, error)
	SetAgentStatus(id string, status model.AgentStatus) (model.Agent, error)
}

// Handler handles agent-related requests
type Handler struct {
	svc Service
}

// NewHandler creates a new agents handler
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// List returns every agent keyed by id
// GET /api/agents
func (h *Handler) List(c *gin.Context) {
	out := make(map[string]gin.H)
	for _, a := range h.svc.Agents() {
		out[a.ID] = gin.H{
			"name":         a.Name,
			"kind":         a.Kind,
			"status":       a.Status,
			"capabilities": a.Capabilities,
			"current_task": a.CurrentTask,
			"progress":     a.Progress,
		}
	}
	httpx.OK(c, out)
}

// Progress returns the progress view of one agent
// GET /api/agents/:id/progress
func (h *Handler) Progress(c *gin.Context) {
	p, err := h.svc.AgentProgress(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, apierr.From(err))
		return
	}
	httpx.OK(c, p)
}

// Logs returns the retained log of one agent
// GET /api/logs/:id
func (h *Handler) Logs(c *gin.Context) {
	logs, err := h.svc.AgentLogs(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, apierr.From(err))
		return
	}
	httpx.OK(c, logs)
}

// SetStatusRequest is the body of a status change
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetStatus lets an operator take an agent offline, online or into error
// POST /api/agents/:id/status
func (h *Handler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	agent, err := h.svc.SetAgentStatus(c.Param("id"), model.AgentStatus(req.Status))
	if err != nil {
		httpx.FailErr(c, apierr.From(err))
		return
	}
	httpx.OK(c, agent)
}
