package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultBuffer = 64

// Event types published by the coordinator
const (
	TypeTaskQueued    = "task.queued"
	TypeTaskStarted   = "task.started"
	TypeTaskProgress  = "task.progress"
	TypeTaskCompleted = "task.completed"
	TypeTaskFailed    = "task.failed"
	TypeTaskRejected  = "task.rejected"
	TypeAgentStatus   = "agent.status"
)

// Event is a state change notification
type Event struct {
	Type     string    `json:"type"`
	TaskID   string    `json:"task_id,omitempty"`
	TaskType string    `json:"task_type,omitempty"`
	AgentID  string    `json:"agent_id,omitempty"`
	Status   string    `json:"status,omitempty"`
	Progress int       `json:"progress"`
	Error    string    `json:"error,omitempty"`
	Time     time.Time `json:"time"`
}

// Terminal reports whether the event marks a task completion or failure
func (e Event) Terminal() bool {
	return e.Type == TypeTaskCompleted || e.Type == TypeTaskFailed
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	nextID  uint64
	dropped atomic.Uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a subscriber until ctx is done, then closes its channel
func (b *Bus) Subscribe(ctx context.Context, buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)
	id := atomic.AddUint64(&b.nextID, 1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(id)
	}()
	return ch
}

// Publish delivers ev to every subscriber that has room
func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Dropped is the number of deliveries skipped because a buffer was full
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the current subscriber count
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}
