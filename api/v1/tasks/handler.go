package tasks

import (
	"agentdash/api/v1/apierr"
	"agentdash/internal/coordinator"
	"agentdash/internal/httpx"
	"agentdash/internal/model"

	"github.com/gin-gonic/gin"
)

// Service is the part of the coordinator the task routes need
type Service interface {
	Enqueue(req coordinator.TaskRequest) (model.Task, error)
	Tasks() coordinator.TaskBoard
	Task(id string) (model.Task, error)
	StartWorkflow(params map[string]any) ([]string, error)
}

// Handler handles task-related requests
type Handler struct {
	svc Service
}

// NewHandler creates a new tasks handler
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// CreateRequest is the body of a task submission
type CreateRequest struct {
	Type       string         `json:"type" binding:"required"`
	Name       string         `json:"name"`
	Priority   string         `json:"priority" binding:"omitempty,oneof=low medium high"`
	Parameters map[string]any `json:"parameters"`
}

// List returns active, queued and recently finished tasks
// GET /api/tasks
func (h *Handler) List(c *gin.Context) {
	httpx.OK(c, h.svc.Tasks())
}

// Create queues a task
// POST /api/tasks
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	task, err := h.svc.Enqueue(coordinator.TaskRequest{
		Name:       req.Name,
		Type:       req.Type,
		Priority:   req.Priority,
		Parameters: req.Parameters,
	})
	if err != nil {
		httpx.FailErr(c, apierr.From(err))
		return
	}
	httpx.OK(c, gin.H{
		"task_id": task.ID,
		"status":  task.Status,
	})
}

// Status returns one task wherever it currently is
// GET /api/tasks/:id/status
func (h *Handler) Status(c *gin.Context) {
	task, err := h.svc.Task(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, apierr.From(err))
		return
	}

	httpx.OK(c, gin.H{
		"task_id":        task.ID,
		"name":           task.Name,
		"type":           task.Type,
		"priority":       task.Priority,
		"status":         task.Status,
		"progress":       task.Progress,
		"assigned_agent": task.AssignedAgent,
		"error":          task.Error,
		"created_at":     task.CreatedAt,
		"started_at":     task.StartedAt,
		"completed_at":   task.CompletedAt,
	})
}

// WorkflowRequest optionally carries parameters copied into every stage
type WorkflowRequest struct {
	Parameters map[string]any `json:"parameters"`
}

// StartWorkflow queues the four-stage pipeline
// POST /api/workflow/start
func (h *Handler) StartWorkflow(c *gin.Context) {
	var req WorkflowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
			return
		}
	}

	ids, err := h.svc.StartWorkflow(req.Parameters)
	if err != nil {
		httpx.FailErr(c, apierr.From(err))
		return
	}
	httpx.OK(c, gin.H{
		"message":  "Workflow started",
		"task_ids": ids,
		"status":   "success",
	})
}
