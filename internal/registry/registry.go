package registry

import (
	"errors"
	"fmt"
	"time"

	"agentdash/internal/model"
)

var (
	// ErrUnknownAgent is returned for an agent id that was never registered
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrAgentBusy is returned when a busy agent is asked to change status or take a task
	ErrAgentBusy = errors.New("agent is busy")
	// ErrInvalidStatus is returned for a status that cannot be set by hand
	ErrInvalidStatus = errors.New("invalid agent status")
)

// DefaultLogCap is the number of log entries kept per agent
const DefaultLogCap = 50

// Registry holds the agents in declaration order.
// It is not safe for concurrent use; the coordinator serializes access.
type Registry struct {
	agents map[string]*model.Agent
	order  []string
	logCap int
	now    func() time.Time
}

// New creates a registry from specs. Every agent starts online unless listed in offline.
func New(specs []model.AgentSpec, logCap int, offline ...string) *Registry {
	if logCap <= 0 {
		logCap = DefaultLogCap
	}
	down := make(map[string]bool, len(offline))
	for _, id := range offline {
		down[id] = true
	}

	r := &Registry{
		agents: make(map[string]*model.Agent, len(specs)),
		logCap: logCap,
		now:    time.Now,
	}
	for _, s := range specs {
		status := model.AgentStatusOnline
		if down[s.ID] {
			status = model.AgentStatusOffline
		}
		r.agents[s.ID] = &model.Agent{
			ID:           s.ID,
			Name:         s.Name,
			Kind:         s.Kind,
			Capabilities: append([]string(nil), s.Capabilities...),
			Status:       status,
		}
		r.order = append(r.order, s.ID)
	}
	return r
}

// CanHandle reports whether agent may take task right now
func CanHandle(agent *model.Agent, task *model.Task) bool {
	if agent == nil || task == nil {
		return false
	}
	return agent.Status == model.AgentStatusOnline && agent.HasCapability(task.Type)
}

// CanHandle looks the agent up and applies the package-level predicate
func (r *Registry) CanHandle(agentID string, task *model.Task) bool {
	return CanHandle(r.agents[agentID], task)
}

// Get returns the live agent record
func (r *Registry) Get(id string) (*model.Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return a, nil
}

// List returns copies of all agents in declaration order
func (r *Registry) List() []model.Agent {
	out := make([]model.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].Clone())
	}
	return out
}

// Idle returns the ids of online agents without a current task, in declaration order
func (r *Registry) Idle() []string {
	var out []string
	for _, id := range r.order {
		a := r.agents[id]
		if a.Status == model.AgentStatusOnline && a.CurrentTask == "" {
			out = append(out, id)
		}
	}
	return out
}

// SetStatus is the operator path: busy cannot be set by hand and a busy agent cannot be changed
func (r *Registry) SetStatus(id string, status model.AgentStatus) (model.AgentStatus, error) {
	a, err := r.Get(id)
	if err != nil {
		return "", err
	}
	if !status.Valid() || status == model.AgentStatusBusy {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if a.Status == model.AgentStatusBusy {
		return "", fmt.Errorf("%w: %s", ErrAgentBusy, id)
	}
	prev := a.Status
	a.Status = status
	r.AppendLog(id, fmt.Sprintf("Status changed from %s to %s", prev, status), model.LogLevelInfo)
	return prev, nil
}

// Begin marks the agent busy on taskID with progress 0
func (r *Registry) Begin(id, taskID string) error {
	a, err := r.Get(id)
	if err != nil {
		return err
	}
	if a.CurrentTask != "" {
		return fmt.Errorf("%w: %s holds %s", ErrAgentBusy, id, a.CurrentTask)
	}
	a.Status = model.AgentStatusBusy
	a.CurrentTask = taskID
	a.Progress = 0
	return nil
}

// SetProgress clamps p into 0..100
func (r *Registry) SetProgress(id string, p int) {
	a, ok := r.agents[id]
	if !ok {
		return
	}
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	a.Progress = p
}

// Release returns the agent online with the given final progress
func (r *Registry) Release(id string, progress int) {
	a, ok := r.agents[id]
	if !ok {
		return
	}
	a.Status = model.AgentStatusOnline
	a.CurrentTask = ""
	r.SetProgress(id, progress)
}

// AppendLog adds an entry and drops the oldest beyond the cap
func (r *Registry) AppendLog(id, message, level string) {
	a, ok := r.agents[id]
	if !ok {
		return
	}
	a.Logs = append(a.Logs, model.LogEntry{
		Timestamp: r.now(),
		Message:   message,
		Level:     level,
	})
	if over := len(a.Logs) - r.logCap; over > 0 {
		a.Logs = append([]model.LogEntry(nil), a.Logs[over:]...)
	}
}
