package registry

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdash/internal/model"
)

func newTestRegistry(offline ...string) *Registry {
	return New(model.DefaultAgents(), 5, offline...)
}

func TestCanHandle(t *testing.T) {
	r := newTestRegistry("report_agent")

	tests := []struct {
		name    string
		agentID string
		taskTyp string
		want    bool
	}{
		{"capable online", "data_agent", model.TaskTypeDataCleaning, true},
		{"incapable online", "data_agent", model.TaskTypeTrendAnalysis, false},
		{"capable offline", "report_agent", model.TaskTypePDFExport, false},
		{"unknown agent", "ghost", model.TaskTypeDataCleaning, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &model.Task{Type: tt.taskTyp}
			assert.Equal(t, tt.want, r.CanHandle(tt.agentID, task))
		})
	}
}

func TestCanHandleBusyAgent(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.Begin("data_agent", "t1"))

	assert.False(t, r.CanHandle("data_agent", &model.Task{Type: model.TaskTypeDataProcessing}))
	assert.False(t, CanHandle(nil, &model.Task{Type: model.TaskTypeDataProcessing}))
}

func TestSetStatus(t *testing.T) {
	r := newTestRegistry()

	prev, err := r.SetStatus("analysis_agent", model.AgentStatusOffline)
	require.NoError(t, err)
	assert.Equal(t, model.AgentStatusOnline, prev)

	a, err := r.Get("analysis_agent")
	require.NoError(t, err)
	assert.Equal(t, model.AgentStatusOffline, a.Status)
	assert.Len(t, a.Logs, 1)

	_, err = r.SetStatus("analysis_agent", model.AgentStatusBusy)
	assert.True(t, errors.Is(err, ErrInvalidStatus))

	_, err = r.SetStatus("analysis_agent", "sleepy")
	assert.True(t, errors.Is(err, ErrInvalidStatus))

	_, err = r.SetStatus("ghost", model.AgentStatusOnline)
	assert.True(t, errors.Is(err, ErrUnknownAgent))

	require.NoError(t, r.Begin("data_agent", "t1"))
	_, err = r.SetStatus("data_agent", model.AgentStatusOffline)
	assert.True(t, errors.Is(err, ErrAgentBusy))
}

func TestIdleOrder(t *testing.T) {
	r := newTestRegistry("analysis_agent")
	require.NoError(t, r.Begin("visualization_agent", "t1"))

	assert.Equal(t, []string{"data_agent", "report_agent"}, r.Idle())
}

func TestBeginReleaseCycle(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.Begin("data_agent", "t1"))
	err := r.Begin("data_agent", "t2")
	assert.True(t, errors.Is(err, ErrAgentBusy))

	r.SetProgress("data_agent", 140)
	a, _ := r.Get("data_agent")
	assert.Equal(t, 100, a.Progress)
	assert.Equal(t, model.AgentStatusBusy, a.Status)
	assert.Equal(t, "t1", a.CurrentTask)

	r.Release("data_agent", 0)
	assert.Equal(t, model.AgentStatusOnline, a.Status)
	assert.Empty(t, a.CurrentTask)
	assert.Equal(t, 0, a.Progress)
}

func TestAppendLogCap(t *testing.T) {
	r := newTestRegistry()
	for i := 0; i < 8; i++ {
		r.AppendLog("report_agent", fmt.Sprintf("line %d", i), model.LogLevelInfo)
	}

	a, _ := r.Get("report_agent")
	require.Len(t, a.Logs, 5)
	assert.Equal(t, "line 3", a.Logs[0].Message)
	assert.Equal(t, "line 7", a.Logs[4].Message)

	recent := a.RecentLogs(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "line 6", recent[0].Message)
}

func TestListReturnsCopies(t *testing.T) {
	r := newTestRegistry()
	list := r.List()
	require.Len(t, list, 4)
	list[0].Capabilities[0] = "mutated"

	a, _ := r.Get(list[0].ID)
	assert.Equal(t, model.TaskTypeDataProcessing, a.Capabilities[0])
}
