package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/forge/internal/executor"
	"github.com/harrison/forge/internal/project"
	"github.com/harrison/forge/internal/taskgraph"
)

func taskGraph(tasks map[string][]string) *taskgraph.Graph {
	g := &taskgraph.Graph{Tasks: make(map[taskgraph.TaskID]*taskgraph.Task)}
	for id, deps := range tasks {
		depSet := make(map[taskgraph.TaskID]bool, len(deps))
		for _, d := range deps {
			depSet[taskgraph.TaskID(d)] = true
		}
		g.Tasks[taskgraph.TaskID(id)] = &taskgraph.Task{ID: taskgraph.TaskID(id), Dependencies: depSet}
	}
	return g
}

func TestLayersOrdersByDependency(t *testing.T) {
	g := taskGraph(map[string][]string{
		"a:t": nil,
		"b:t": {"a:t"},
		"c:t": {"b:t"},
	})

	layers, err := Layers(g)
	require.NoError(t, err)
	require.Len(t, layers, 3)
	assert.Equal(t, []taskgraph.TaskID{"a:t"}, layers[0])
	assert.Equal(t, []taskgraph.TaskID{"b:t"}, layers[1])
	assert.Equal(t, []taskgraph.TaskID{"c:t"}, layers[2])
}

func TestLayersGroupsIndependentTasksTogether(t *testing.T) {
	g := taskGraph(map[string][]string{
		"a:t": nil,
		"b:t": nil,
	})

	layers, err := Layers(g)
	require.NoError(t, err)
	require.Len(t, layers, 1)
	assert.ElementsMatch(t, []taskgraph.TaskID{"a:t", "b:t"}, layers[0])
}

func TestLayersDetectsCycle(t *testing.T) {
	g := taskGraph(map[string][]string{
		"a:t": {"b:t"},
		"b:t": {"a:t"},
	})

	_, err := Layers(g)
	require.Error(t, err)

	var cycleErr *taskgraph.CycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func fakeRunner(failing map[taskgraph.TaskID]bool) Runner {
	return func(ctx context.Context, task *taskgraph.Task, pg *project.Graph, workspaceRoot string, verbose bool, logger executor.Logger) executor.Result {
		if failing[task.ID] {
			return executor.Result{TaskID: task.ID, Status: executor.StatusFailed, ExitCode: 1, Error: "boom"}
		}
		return executor.Result{TaskID: task.ID, Status: executor.StatusCompleted, ExitCode: 0}
	}
}

// TestExecuteFailFast reproduces spec §8 scenario 5: a:t fails, b:t
// succeeds (same layer, both run); c:t depends on a:t and must not appear
// in results.
func TestExecuteFailFast(t *testing.T) {
	g := taskGraph(map[string][]string{
		"a:t": nil,
		"b:t": nil,
		"c:t": {"a:t"},
	})
	pg := project.NewGraph(nil, nil, nil)

	results, err := Execute(context.Background(), g, pg, fakeRunner(map[taskgraph.TaskID]bool{"a:t": true}), Options{})
	require.NoError(t, err)

	assert.Contains(t, results.ResultsByTask, taskgraph.TaskID("a:t"))
	assert.Contains(t, results.ResultsByTask, taskgraph.TaskID("b:t"))
	assert.NotContains(t, results.ResultsByTask, taskgraph.TaskID("c:t"), "later layer is omitted after a layer fails")
	assert.Equal(t, 1, results.FailureCount)
	assert.Equal(t, 1, results.SuccessCount)
}

func TestExecuteAllSucceed(t *testing.T) {
	g := taskGraph(map[string][]string{
		"a:t": nil,
		"b:t": {"a:t"},
	})
	pg := project.NewGraph(nil, nil, nil)

	results, err := Execute(context.Background(), g, pg, fakeRunner(nil), Options{})
	require.NoError(t, err)

	assert.Len(t, results.ResultsByTask, 2)
	assert.Equal(t, 0, results.FailureCount)
	assert.Equal(t, 2, results.SuccessCount)
	assert.NotEmpty(t, results.RunID)
}

func TestExecuteLayerHooksFire(t *testing.T) {
	g := taskGraph(map[string][]string{"a:t": nil})
	pg := project.NewGraph(nil, nil, nil)

	var started, completed int
	_, err := Execute(context.Background(), g, pg, fakeRunner(nil), Options{
		OnLayerStart:    func(layer int, ids []taskgraph.TaskID) { started++ },
		OnLayerComplete: func(layer int, rs []executor.Result) { completed++ },
	})
	require.NoError(t, err)

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, completed)
}

func TestExecuteMaxConcurrencyBoundsParallelism(t *testing.T) {
	g := taskGraph(map[string][]string{"a:t": nil, "b:t": nil, "c:t": nil})
	pg := project.NewGraph(nil, nil, nil)

	results, err := Execute(context.Background(), g, pg, fakeRunner(nil), Options{MaxConcurrency: 1})
	require.NoError(t, err)

	assert.Len(t, results.ResultsByTask, 3)
	assert.Equal(t, 3, results.SuccessCount)
}
