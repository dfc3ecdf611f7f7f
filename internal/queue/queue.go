package queue

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentdash/internal/model"
)

var (
	// ErrUnknownTask is returned for an id in none of pending, active or terminal
	ErrUnknownTask = errors.New("unknown task")
	// ErrEmptyTaskType is returned when a task is enqueued without a type
	ErrEmptyTaskType = errors.New("task type is required")
)

// DefaultHistoryCap bounds the terminal history
const DefaultHistoryCap = 100

// Active is a running assignment
type Active struct {
	AgentID string
	Task    *model.Task
	Start   time.Time
}

// Queue keeps every task in exactly one of pending, active or terminal.
// It is not safe for concurrent use; the coordinator serializes access.
type Queue struct {
	pending    []*model.Task
	active     map[string]*Active
	terminal   []*model.Task
	historyCap int
	now        func() time.Time
}

// New creates an empty queue
func New(historyCap int) *Queue {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Queue{
		active:     make(map[string]*Active),
		historyCap: historyCap,
		now:        time.Now,
	}
}

// NewTaskID returns task_<unix-millis>_<8 hex chars>
func NewTaskID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("task_%d_%s", now.UnixMilli(), suffix)
}

// Enqueue fills in id, status and timestamps and appends the task to pending
func (q *Queue) Enqueue(t *model.Task) (*model.Task, error) {
	if t == nil || strings.TrimSpace(t.Type) == "" {
		return nil, ErrEmptyTaskType
	}
	now := q.now()
	if t.ID == "" {
		t.ID = NewTaskID(now)
	}
	if t.Name == "" {
		t.Name = t.Type
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if t.Parameters == nil {
		t.Parameters = map[string]any{}
	}
	t.Status = model.TaskStatusQueued
	t.Progress = 0
	t.CreatedAt = now
	q.pending = append(q.pending, t)
	return t, nil
}

// Pending returns the pending tasks in FIFO order; the slice is a copy, the tasks are live
func (q *Queue) Pending() []*model.Task {
	return append([]*model.Task(nil), q.pending...)
}

// PendingLen is the number of queued tasks
func (q *Queue) PendingLen() int {
	return len(q.pending)
}

// Take removes a task from pending and returns its position
func (q *Queue) Take(taskID string) (*model.Task, int, error) {
	for i, t := range q.pending {
		if t.ID == taskID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return t, i, nil
		}
	}
	return nil, -1, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
}

// Requeue puts a task back at pos, clamped to the current length
func (q *Queue) Requeue(t *model.Task, pos int) {
	t.Status = model.TaskStatusQueued
	t.AssignedAgent = ""
	t.StartedAt = nil
	if pos < 0 || pos > len(q.pending) {
		pos = len(q.pending)
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[pos+1:], q.pending[pos:])
	q.pending[pos] = t
}

// Activate records the task as running on agentID
func (q *Queue) Activate(t *model.Task, agentID string) *Active {
	now := q.now()
	t.Status = model.TaskStatusInProgress
	t.AssignedAgent = agentID
	t.StartedAt = &now
	a := &Active{AgentID: agentID, Task: t, Start: now}
	q.active[t.ID] = a
	return a
}

// ActiveFor returns the running entry for taskID
func (q *Queue) ActiveFor(taskID string) (*Active, bool) {
	a, ok := q.active[taskID]
	return a, ok
}

// ActiveByAgent returns the task an agent is running, if any
func (q *Queue) ActiveByAgent(agentID string) (*Active, bool) {
	for _, a := range q.active {
		if a.AgentID == agentID {
			return a, true
		}
	}
	return nil, false
}

// ActiveList returns running entries ordered by start time
func (q *Queue) ActiveList() []*Active {
	out := make([]*Active, 0, len(q.active))
	for _, a := range q.active {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].Task.ID < out[j].Task.ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// ActiveLen is the number of running tasks
func (q *Queue) ActiveLen() int {
	return len(q.active)
}

// Finish moves a running task to terminal history. It returns false if the
// task was not active, so a terminal transition happens at most once.
func (q *Queue) Finish(taskID string, status model.TaskStatus, errMsg string) (*model.Task, bool) {
	a, ok := q.active[taskID]
	if !ok || !status.Terminal() {
		return nil, false
	}
	delete(q.active, taskID)

	now := q.now()
	t := a.Task
	t.Status = status
	t.CompletedAt = &now
	t.Error = errMsg
	if status == model.TaskStatusCompleted {
		t.Progress = 100
	}

	q.terminal = append(q.terminal, t)
	if over := len(q.terminal) - q.historyCap; over > 0 {
		q.terminal = append([]*model.Task(nil), q.terminal[over:]...)
	}
	return t, true
}

// Terminal returns up to n of the newest terminal tasks, oldest first. n <= 0 means all.
func (q *Queue) Terminal(n int) []*model.Task {
	start := 0
	if n > 0 && len(q.terminal) > n {
		start = len(q.terminal) - n
	}
	return append([]*model.Task(nil), q.terminal[start:]...)
}

// TerminalLen is the size of the retained history
func (q *Queue) TerminalLen() int {
	return len(q.terminal)
}

// Lookup searches active, then terminal, then pending
func (q *Queue) Lookup(taskID string) (*model.Task, error) {
	if a, ok := q.active[taskID]; ok {
		return a.Task, nil
	}
	for i := len(q.terminal) - 1; i >= 0; i-- {
		if q.terminal[i].ID == taskID {
			return q.terminal[i], nil
		}
	}
	for _, t := range q.pending {
		if t.ID == taskID {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
}
