// Package planner layers a task graph topologically and drives the
// executor with parallel workers per layer and fail-fast semantics across
// layers (spec §4.8, §5).
package planner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrison/forge/internal/executor"
	"github.com/harrison/forge/internal/project"
	"github.com/harrison/forge/internal/taskgraph"

	"github.com/google/uuid"
)

// Results is the aggregated outcome of one Execute call.
type Results struct {
	RunID          string
	ResultsByTask  map[taskgraph.TaskID]executor.Result
	TotalDuration  time.Duration
	SuccessCount   int
	FailureCount   int
}

// Runner executes a single task; implemented by executor.Execute, wrapped
// so tests can substitute a fake.
type Runner func(ctx context.Context, task *taskgraph.Task, pg *project.Graph, workspaceRoot string, verbose bool, logger executor.Logger) executor.Result

// Options configures Execute.
type Options struct {
	WorkspaceRoot string
	Verbose       bool
	// MaxConcurrency bounds the number of tasks dispatched at once within
	// a layer; 0 means unbounded (one worker per task in the layer).
	MaxConcurrency int
	Logger         executor.Logger
	// OnLayerStart/OnLayerComplete are optional progress hooks.
	OnLayerStart    func(layer int, taskIDs []taskgraph.TaskID)
	OnLayerComplete func(layer int, results []executor.Result)
	OnTaskComplete  func(result executor.Result)
}

// Layers computes Kahn-style dependency layers over the task graph: tasks
// with no unresolved dependencies form a layer, are marked resolved, and
// the process repeats. Returns a *taskgraph.CycleError if progress stalls
// with tasks remaining.
func Layers(g *taskgraph.Graph) ([][]taskgraph.TaskID, error) {
	remaining := make(map[taskgraph.TaskID]bool, len(g.Tasks))
	for id := range g.Tasks {
		remaining[id] = true
	}

	var layers [][]taskgraph.TaskID

	for len(remaining) > 0 {
		var layer []taskgraph.TaskID
		for id := range remaining {
			task := g.Tasks[id]
			ready := true
			for dep := range task.Dependencies {
				if remaining[dep] {
					ready = false
					break
				}
			}
			if ready {
				layer = append(layer, id)
			}
		}

		if len(layer) == 0 {
			return nil, stalledCycle(remaining, g)
		}

		sort.Slice(layer, func(i, j int) bool { return layer[i] < layer[j] })
		layers = append(layers, layer)
		for _, id := range layer {
			delete(remaining, id)
		}
	}

	return layers, nil
}

func stalledCycle(remaining map[taskgraph.TaskID]bool, g *taskgraph.Graph) error {
	ids := make([]taskgraph.TaskID, 0, len(remaining))
	for id := range remaining {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return fmt.Errorf("planner: %w", &taskgraph.CycleError{Path: ids})
}

// Execute runs g's layers in order: each layer's tasks run concurrently
// behind a barrier; if any task in a layer fails, later layers are not
// scheduled and their tasks are simply absent from the returned results
// (spec §4.8 step 3 — "complete the current layer, then halt", Design
// Notes §9).
func Execute(ctx context.Context, g *taskgraph.Graph, pg *project.Graph, run Runner, opts Options) (Results, error) {
	layers, err := Layers(g)
	if err != nil {
		return Results{}, err
	}

	results := Results{
		RunID:         uuid.NewString(),
		ResultsByTask: make(map[taskgraph.TaskID]executor.Result, len(g.Tasks)),
	}

	overallStart := time.Now()
	failed := false

	for layerIdx, layer := range layers {
		if failed {
			break
		}

		if opts.OnLayerStart != nil {
			opts.OnLayerStart(layerIdx, layer)
		}

		layerResults := executeLayer(ctx, g, pg, run, opts, layer)

		for _, r := range layerResults {
			results.ResultsByTask[r.TaskID] = r
			if r.Status == executor.StatusCompleted {
				results.SuccessCount++
			} else {
				results.FailureCount++
				failed = true
			}
			if opts.OnTaskComplete != nil {
				opts.OnTaskComplete(r)
			}
		}

		if opts.OnLayerComplete != nil {
			opts.OnLayerComplete(layerIdx, layerResults)
		}
	}

	results.TotalDuration = time.Since(overallStart)
	return results, nil
}

func executeLayer(ctx context.Context, g *taskgraph.Graph, pg *project.Graph, run Runner, opts Options, layer []taskgraph.TaskID) []executor.Result {
	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > len(layer) {
		maxConcurrency = len(layer)
	}
	sem := make(chan struct{}, maxConcurrency)

	results := make([]executor.Result, len(layer))
	var wg sync.WaitGroup
	wg.Add(len(layer))

	for i, id := range layer {
		go func(i int, id taskgraph.TaskID) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			task := g.Tasks[id]
			results[i] = run(ctx, task, pg, opts.WorkspaceRoot, opts.Verbose, opts.Logger)
		}(i, id)
	}

	wg.Wait()
	return results
}
