package queue

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdash/internal/model"
)

// membership counts in how many of pending, active and terminal the task appears
func membership(q *Queue, id string) int {
	n := 0
	for _, t := range q.pending {
		if t.ID == id {
			n++
		}
	}
	if _, ok := q.active[id]; ok {
		n++
	}
	for _, t := range q.terminal {
		if t.ID == id {
			n++
		}
	}
	return n
}

func TestNewTaskIDFormat(t *testing.T) {
	id := NewTaskID(time.UnixMilli(1700000000123))
	assert.Regexp(t, regexp.MustCompile(`^task_1700000000123_[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, NewTaskID(time.UnixMilli(1700000000123)))
}

func TestEnqueueDefaults(t *testing.T) {
	q := New(0)

	task, err := q.Enqueue(&model.Task{Type: model.TaskTypeDataCleaning})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, model.TaskTypeDataCleaning, task.Name)
	assert.Equal(t, model.PriorityMedium, task.Priority)
	assert.Equal(t, model.TaskStatusQueued, task.Status)
	assert.NotNil(t, task.Parameters)
	assert.False(t, task.CreatedAt.IsZero())

	_, err = q.Enqueue(&model.Task{Type: "  "})
	assert.True(t, errors.Is(err, ErrEmptyTaskType))
}

func TestLifecycleMembership(t *testing.T) {
	q := New(10)
	task, err := q.Enqueue(&model.Task{Type: model.TaskTypeDataCleaning})
	require.NoError(t, err)
	assert.Equal(t, 1, membership(q, task.ID))

	taken, pos, err := q.Take(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	q.Activate(taken, "data_agent")
	assert.Equal(t, 1, membership(q, task.ID))
	assert.Equal(t, model.TaskStatusInProgress, taken.Status)
	assert.NotNil(t, taken.StartedAt)

	a, ok := q.ActiveByAgent("data_agent")
	require.True(t, ok)
	assert.Equal(t, task.ID, a.Task.ID)

	done, ok := q.Finish(task.ID, model.TaskStatusCompleted, "")
	require.True(t, ok)
	assert.Equal(t, 100, done.Progress)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 1, membership(q, task.ID))

	_, ok = q.Finish(task.ID, model.TaskStatusFailed, "late")
	assert.False(t, ok)
	assert.Equal(t, model.TaskStatusCompleted, done.Status)
}

func TestRequeueKeepsPosition(t *testing.T) {
	q := New(10)
	var ids []string
	for i := 0; i < 3; i++ {
		task, err := q.Enqueue(&model.Task{Type: model.TaskTypeDataCleaning, Name: fmt.Sprintf("t%d", i)})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	task, pos, err := q.Take(ids[1])
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	q.Requeue(task, pos)

	var got []string
	for _, p := range q.Pending() {
		got = append(got, p.ID)
	}
	assert.Equal(t, ids, got)
}

func TestHistoryCap(t *testing.T) {
	q := New(2)
	for i := 0; i < 3; i++ {
		task, err := q.Enqueue(&model.Task{Type: model.TaskTypeDataCleaning, ID: fmt.Sprintf("t%d", i)})
		require.NoError(t, err)
		_, _, err = q.Take(task.ID)
		require.NoError(t, err)
		q.Activate(task, "data_agent")
		q.Finish(task.ID, model.TaskStatusCompleted, "")
	}

	hist := q.Terminal(0)
	require.Len(t, hist, 2)
	assert.Equal(t, "t1", hist[0].ID)
	assert.Equal(t, "t2", hist[1].ID)
	assert.Len(t, q.Terminal(1), 1)
}

func TestLookupOrder(t *testing.T) {
	q := New(10)
	queued, _ := q.Enqueue(&model.Task{Type: model.TaskTypeDataCleaning})
	running, _ := q.Enqueue(&model.Task{Type: model.TaskTypeDataValidation})
	_, _, _ = q.Take(running.ID)
	q.Activate(running, "data_agent")

	got, err := q.Lookup(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQueued, got.Status)

	got, err = q.Lookup(running.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, got.Status)

	_, err = q.Lookup("task_missing")
	assert.True(t, errors.Is(err, ErrUnknownTask))
}
