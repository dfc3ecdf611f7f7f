package coordinator

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdash/internal/model"
)

func TestTaskBoardListsActiveTasksFlat(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	entered := make(chan struct{})
	c := newTestCoordinator(t, func(cfg *Config) {
		cfg.Simulation.Fault = func(model.Task, int) error {
			once.Do(func() { close(entered) })
			<-release
			return nil
		}
	})

	task, err := c.Enqueue(TaskRequest{
		Type:       model.TaskTypeDataCleaning,
		Parameters: map[string]any{"dataset_type": "sales"},
	})
	require.NoError(t, err)
	<-entered

	raw, err := json.Marshal(c.Tasks())
	close(release)
	require.NoError(t, err)

	var board struct {
		Active []map[string]any `json:"active"`
	}
	require.NoError(t, json.Unmarshal(raw, &board))
	require.Len(t, board.Active, 1)

	row := board.Active[0]
	assert.Equal(t, task.ID, row["id"])
	assert.Equal(t, model.TaskTypeDataCleaning, row["type"])
	assert.Equal(t, string(model.TaskStatusInProgress), row["status"])
	assert.Equal(t, map[string]any{"dataset_type": "sales"}, row["parameters"])
	assert.Equal(t, "data_agent", row["agent_id"])
	assert.Contains(t, row, "start_time")
	assert.NotContains(t, row, "task")

	waitTask(t, c, task.ID)
}
