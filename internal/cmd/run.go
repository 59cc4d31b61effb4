package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/harrison/forge/internal/executor"
	"github.com/harrison/forge/internal/filelock"
	"github.com/harrison/forge/internal/logger"
	"github.com/harrison/forge/internal/planner"
	"github.com/harrison/forge/internal/project"
	"github.com/harrison/forge/internal/taskgraph"
	"github.com/spf13/cobra"
)

type runFlags struct {
	projects       []string
	affectedFiles  []string
	base           string
	configuration  string
	verbose        bool
	maxConcurrency int
	logLevel       string
	fileLog        bool
}

// NewRunCommand creates the run subcommand: infer the project graph,
// expand the requested targets into a task graph, and execute it layer by
// layer.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <target> [<target>...]",
		Short: "Run one or more targets across the workspace",
		Long: `run infers the project graph, expands the requested targets into a
lifecycle-aware task graph, and executes the resulting DAG layer by layer
with bounded concurrency.

Exit codes: 0 success, 1 one or more tasks failed, 2 configuration or
cycle error, 130 interrupted.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := runRun(cmd, args, flags)
			if err != nil {
				return err
			}
			if code != ExitSuccess {
				os.Exit(code)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringSliceVar(&flags.projects, "project", nil, "restrict to these projects (default: all)")
	cmd.Flags().StringSliceVar(&flags.affectedFiles, "affected-files", nil, "restrict to projects owning these changed files, plus their dependents")
	cmd.Flags().StringVar(&flags.base, "base", "", "base ref label; accepted but not used (diffing itself is out of scope)")
	cmd.Flags().StringVar(&flags.configuration, "configuration", "", "named target configuration variant to apply (e.g. production)")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "mirror task output to the console as it runs")
	cmd.Flags().IntVar(&flags.maxConcurrency, "max-concurrency", 0, "bound concurrent tasks per layer (0 = unbounded)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "console log level (trace, debug, info, warn, error)")
	cmd.Flags().BoolVar(&flags.fileLog, "file-log", true, "additionally log to .forge/logs/")

	return cmd
}

func runRun(cmd *cobra.Command, targets []string, flags *runFlags) (int, error) {
	root, err := os.Getwd()
	if err != nil {
		return ExitConfigError, &ConfigError{Cause: err}
	}

	lock := filelock.NewFileLock(filepath.Join(root, ".forge", "run.lock"))
	acquired, err := lock.TryLock()
	if err != nil {
		return ExitConfigError, &ConfigError{Cause: fmt.Errorf("acquiring workspace lock: %w", err)}
	}
	if !acquired {
		return ExitConfigError, &ConfigError{Cause: fmt.Errorf("another forge run holds the workspace lock")}
	}
	defer lock.Unlock()

	built, err := buildProjectGraph(root)
	if err != nil {
		return ExitConfigError, err
	}

	affected := projectsOwning(built.Graph, flags.affectedFiles)

	g, err := buildTaskGraph(built.Graph, built.Lifecycle, taskgraph.Options{
		RequestedTargets: targets,
		ProjectSubset:    flags.projects,
		Affected:         affected,
		Configuration:    flags.configuration,
	})
	if err != nil {
		return ExitConfigError, err
	}

	console := logger.NewConsoleLogger(cmd.OutOrStdout(), flags.logLevel)
	console.SetVerbose(flags.verbose)

	var fileLogger *logger.FileLogger
	if flags.fileLog {
		fileLogger, err = logger.NewFileLogger()
		if err != nil {
			return ExitConfigError, &ConfigError{Cause: err}
		}
		defer fileLogger.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	var interrupted atomic.Bool
	go func() {
		select {
		case <-sigCh:
			interrupted.Store(true)
			cancel()
		case <-ctx.Done():
		}
	}()
	defer signal.Stop(sigCh)

	results, err := planner.Execute(ctx, g, built.Graph, executor.Execute, planner.Options{
		WorkspaceRoot:  root,
		Verbose:        flags.verbose,
		MaxConcurrency: flags.maxConcurrency,
		Logger:         console,
		OnLayerStart: func(layer int, ids []taskgraph.TaskID) {
			console.LayerStart(layer, ids)
			if fileLogger != nil {
				fileLogger.LayerStart(layer, ids)
			}
		},
		OnLayerComplete: func(layer int, rs []executor.Result) {
			console.LayerComplete(layer, rs)
			if fileLogger != nil {
				fileLogger.LayerComplete(layer, rs)
			}
		},
	})
	if err != nil {
		return ExitConfigError, &TaskExecutionError{Cause: err}
	}

	console.Summary(results.RunID, len(results.ResultsByTask), results.SuccessCount, results.FailureCount, results.TotalDuration)
	if fileLogger != nil {
		fileLogger.Summary(results.RunID, len(results.ResultsByTask), results.SuccessCount, results.FailureCount, results.TotalDuration)
	}

	if interrupted.Load() {
		return ExitInterrupted, nil
	}
	if results.FailureCount > 0 {
		return ExitTaskFailure, nil
	}
	return ExitSuccess, nil
}

// projectsOwning maps changed file paths to the projects that own them via
// ProjectConfiguration.Root prefix match (spec §6 SUPPLEMENTED FEATURES).
func projectsOwning(pg *project.Graph, files []string) []string {
	if len(files) == 0 {
		return nil
	}
	owners := make(map[string]bool)
	for _, f := range files {
		f = filepath.ToSlash(f)
		for name, node := range pg.Nodes {
			root := node.Config.Root
			var owns bool
			switch {
			case root == "":
				// A project rooted at the workspace root owns only
				// top-level files, not every file in every subdirectory.
				owns = !strings.Contains(f, "/")
			default:
				owns = f == root || strings.HasPrefix(f, root+"/")
			}
			if owns {
				owners[name] = true
			}
		}
	}
	out := make([]string, 0, len(owners))
	for name := range owners {
		out = append(out, name)
	}
	return out
}
