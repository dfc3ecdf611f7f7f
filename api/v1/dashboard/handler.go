package dashboard

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"agentdash/internal/dashboard"
	"agentdash/internal/httpx"

	"github.com/gin-gonic/gin"
)

// Backend forwards raw requests to the coordinator
type Backend interface {
	Do(ctx context.Context, method, path string, body []byte) (int, []byte, error)
}

// Views controls which dashboard views are polled
type Views interface {
	Activate(v dashboard.View)
	Deactivate(v dashboard.View)
	ActiveViews() []dashboard.View
	Trigger()
}

// Handler serves the dashboard's own HTTP surface
type Handler struct {
	state   *dashboard.State
	backend Backend
	views   Views
	timeout time.Duration
}

// NewHandler creates a new dashboard handler
func NewHandler(state *dashboard.State, backend Backend, views Views, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{state: state, backend: backend, views: views, timeout: timeout}
}

// State returns the current display state
// GET /api/dashboard/state
func (h *Handler) State(c *gin.Context) {
	httpx.OK(c, h.state.Snapshot())
}

// SubmitTask forwards a task submission to the backend
// POST /api/dashboard/tasks
func (h *Handler) SubmitTask(c *gin.Context) {
	h.forward(c, http.MethodPost, "/api/tasks", true)
}

// StartWorkflow forwards a workflow start to the backend
// POST /api/dashboard/workflow
func (h *Handler) StartWorkflow(c *gin.Context) {
	h.forward(c, http.MethodPost, "/api/workflow/start", true)
}

// TaskStatus looks a task up on the backend
// GET /api/dashboard/tasks/:id
func (h *Handler) TaskStatus(c *gin.Context) {
	h.forward(c, http.MethodGet, "/api/tasks/"+url.PathEscape(c.Param("id"))+"/status", false)
}

// OpenView starts polling a view
// POST /api/dashboard/views/:view/open
func (h *Handler) OpenView(c *gin.Context) {
	v, err := dashboard.ParseView(c.Param("view"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamIllegal(err.Error()))
		return
	}
	h.views.Activate(v)
	httpx.OK(c, gin.H{"active_views": h.views.ActiveViews()})
}

// CloseView stops polling a view once no viewer is left
// POST /api/dashboard/views/:view/close
func (h *Handler) CloseView(c *gin.Context) {
	v, err := dashboard.ParseView(c.Param("view"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamIllegal(err.Error()))
		return
	}
	h.views.Deactivate(v)
	httpx.OK(c, gin.H{"active_views": h.views.ActiveViews()})
}

// forward relays the request body and answers with the backend's status and body.
// Successful writes trigger an immediate poll so the new task shows up without waiting.
func (h *Handler) forward(c *gin.Context, method, path string, write bool) {
	var body []byte
	if write {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("failed to read request body"))
			return
		}
		if len(raw) == 0 {
			raw = []byte("{}")
		}
		body = raw
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status, respBody, err := h.backend.Do(ctx, method, path, body)
	if err != nil {
		httpx.FailErr(c, httpx.ErrExternalError("backend unavailable", err))
		return
	}
	if write && status >= 200 && status < 300 {
		h.views.Trigger()
	}
	c.Data(status, "application/json; charset=utf-8", respBody)
}
