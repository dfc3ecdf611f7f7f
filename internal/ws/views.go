package ws

import (
	"fmt"
	"sync"

	"agentdash/internal/dashboard"
)

// tracker remembers which views each connection has open so a disconnect can release them
type tracker struct {
	mu    sync.Mutex
	conns map[string]map[dashboard.View]bool
}

func newTracker() *tracker {
	return &tracker{conns: make(map[string]map[dashboard.View]bool)}
}

// open returns true the first time a connection opens v
func (t *tracker) open(conn string, v dashboard.View) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	views := t.conns[conn]
	if views == nil {
		views = make(map[dashboard.View]bool)
		t.conns[conn] = views
	}
	if views[v] {
		return false
	}
	views[v] = true
	return true
}

// close returns true if the connection had v open
func (t *tracker) close(conn string, v dashboard.View) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	views := t.conns[conn]
	if !views[v] {
		return false
	}
	delete(views, v)
	if len(views) == 0 {
		delete(t.conns, conn)
	}
	return true
}

// drop forgets a connection and returns the views it still had open
func (t *tracker) drop(conn string) []dashboard.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	views := t.conns[conn]
	delete(t.conns, conn)

	var out []dashboard.View
	for _, v := range dashboard.Views {
		if views[v] {
			out = append(out, v)
		}
	}
	return out
}

// parseView accepts "agents" or {"view": "agents"}
func parseView(data interface{}) (dashboard.View, error) {
	switch d := data.(type) {
	case string:
		return dashboard.ParseView(d)
	case map[string]interface{}:
		if s, ok := d["view"].(string); ok {
			return dashboard.ParseView(s)
		}
	}
	return "", fmt.Errorf("view name missing in %v", data)
}
