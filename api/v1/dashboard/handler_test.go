package dashboard

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdash/internal/apiclient"
	"agentdash/internal/dashboard"
)

type call struct {
	method string
	path   string
	body   string
}

type fakeBackend struct {
	mu     sync.Mutex
	calls  []call
	status int
	body   string
	err    error
}

func (f *fakeBackend) Do(_ context.Context, method, path string, body []byte) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{method, path, string(body)})
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.status, []byte(f.body), nil
}

type fakeViews struct {
	active   map[dashboard.View]int
	triggers int
}

func (f *fakeViews) Activate(v dashboard.View)   { f.active[v]++ }
func (f *fakeViews) Deactivate(v dashboard.View) { f.active[v]-- }
func (f *fakeViews) Trigger()                    { f.triggers++ }
func (f *fakeViews) ActiveViews() []dashboard.View {
	var out []dashboard.View
	for _, v := range dashboard.Views {
		if f.active[v] > 0 {
			out = append(out, v)
		}
	}
	return out
}

func setupTestRouter(backend Backend, views Views, state *dashboard.State) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(state, backend, views, 0)
	r := gin.New()
	r.GET("/api/dashboard/state", h.State)
	r.POST("/api/dashboard/tasks", h.SubmitTask)
	r.GET("/api/dashboard/tasks/:id", h.TaskStatus)
	r.POST("/api/dashboard/workflow", h.StartWorkflow)
	r.POST("/api/dashboard/views/:view/open", h.OpenView)
	r.POST("/api/dashboard/views/:view/close", h.CloseView)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSubmitTaskForwardsAndTriggers(t *testing.T) {
	backend := &fakeBackend{status: http.StatusOK, body: `{"task_id":"task_1","status":"queued"}`}
	views := &fakeViews{active: map[dashboard.View]int{}}
	r := setupTestRouter(backend, views, dashboard.NewState(0))

	w := serve(r, "POST", "/api/dashboard/tasks", `{"type":"trend_analysis"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"task_id":"task_1","status":"queued"}`, w.Body.String())
	require.Len(t, backend.calls, 1)
	assert.Equal(t, call{"POST", "/api/tasks", `{"type":"trend_analysis"}`}, backend.calls[0])
	assert.Equal(t, 1, views.triggers)
}

func TestSubmitTaskRelaysBackendRejection(t *testing.T) {
	backend := &fakeBackend{status: http.StatusBadRequest, body: `{"error":"bad","code":2002}`}
	views := &fakeViews{active: map[dashboard.View]int{}}
	r := setupTestRouter(backend, views, dashboard.NewState(0))

	w := serve(r, "POST", "/api/dashboard/tasks", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "2002")
	assert.Equal(t, 0, views.triggers)
}

func TestBackendDown(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	views := &fakeViews{active: map[dashboard.View]int{}}
	r := setupTestRouter(backend, views, dashboard.NewState(0))

	w := serve(r, "POST", "/api/dashboard/workflow", "")

	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, backend.calls, 1)
	assert.Equal(t, "/api/workflow/start", backend.calls[0].path)
	assert.Equal(t, "{}", backend.calls[0].body)
}

func TestTaskStatusEscapesID(t *testing.T) {
	backend := &fakeBackend{status: http.StatusNotFound, body: `{"error":"not found","code":3001}`}
	views := &fakeViews{active: map[dashboard.View]int{}}
	r := setupTestRouter(backend, views, dashboard.NewState(0))

	w := serve(r, "GET", "/api/dashboard/tasks/task_1", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, call{"GET", "/api/tasks/task_1/status", ""}, backend.calls[0])
}

func TestViews(t *testing.T) {
	views := &fakeViews{active: map[dashboard.View]int{}}
	r := setupTestRouter(&fakeBackend{}, views, dashboard.NewState(0))

	w := serve(r, "POST", "/api/dashboard/views/agents/open", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active_views":["agents"]}`, w.Body.String())

	w = serve(r, "POST", "/api/dashboard/views/agents/close", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"active_views":null}`, w.Body.String())

	w = serve(r, "POST", "/api/dashboard/views/charts/open", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestState(t *testing.T) {
	state := dashboard.NewState(0)
	state.MergeAgent(apiclient.AgentProgress{AgentID: "data_agent", AgentName: "Data Agent", Status: "online"})
	r := setupTestRouter(&fakeBackend{}, &fakeViews{active: map[dashboard.View]int{}}, state)

	w := serve(r, "GET", "/api/dashboard/state", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data_agent"`)
	assert.Contains(t, w.Body.String(), `"version":1`)
}
