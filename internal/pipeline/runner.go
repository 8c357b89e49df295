// Package pipeline implements the ordered task runner: a fixed sequence
// of tasks sharing one accumulating context, halting on the first
// non-success status and downgrading unexpected faults to
// critical_error with the message preserved for diagnosis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RunState is the terminal state of one pipeline run.
type RunState string

const (
	RunStateRunning       RunState = "running"
	RunStateCompleted     RunState = "completed"
	RunStateHaltedOnError RunState = "halted_on_error"
	RunStateHaltedOnSkip  RunState = "halted_on_skip"
	RunStateHaltedOnFault RunState = "halted_on_fault"
)

// StepRecord is one entry of the run audit trail.
type StepRecord struct {
	Task     string
	Status   Status
	Message  string
	Duration time.Duration
}

// RunResult carries the final context plus the run audit trail.
type RunResult struct {
	ID    string
	State RunState
	Final Context
	Steps []StepRecord
}

// Pipeline runs an ordered list of tasks over one shared context.
type Pipeline struct {
	name   string
	tasks  []Task
	logger *slog.Logger
}

// New creates a pipeline. A nil logger falls back to slog.Default.
func New(name string, logger *slog.Logger, tasks ...Task) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		name:   name,
		tasks:  tasks,
		logger: logger.With(slog.String("pipeline", name)),
	}
}

// Run executes the tasks in order. Each task receives a copy of the
// accumulated context and its partial update is merged back with
// shallow key overwrite. The run stops at the first task whose merged
// status is error, skipped or critical_error; remaining tasks never
// execute. An empty pipeline returns the initial context unchanged.
func (p *Pipeline) Run(ctx context.Context, initial Context) *RunResult {
	run := &RunResult{
		ID:    uuid.NewString(),
		State: RunStateRunning,
	}

	current := initial.Clone()

	p.logger.InfoContext(ctx, "pipeline_start",
		slog.String("run_id", run.ID),
		slog.Int("task_count", len(p.tasks)))

	for i, task := range p.tasks {
		start := time.Now()

		partial, err := p.safeExecute(ctx, task, current.Clone())
		elapsed := time.Since(start)

		if err == nil && partial.Status() == "" {
			// A task that reports no status is an implementation error;
			// continuing with ambiguous state would hide it.
			err = fmt.Errorf("task %s returned no status", task.Name())
		}

		if err != nil {
			current[KeyStatus] = StatusCriticalError
			current[KeyMessage] = err.Error()
			run.Steps = append(run.Steps, StepRecord{
				Task:     task.Name(),
				Status:   StatusCriticalError,
				Message:  err.Error(),
				Duration: elapsed,
			})
			run.State = RunStateHaltedOnFault
			p.logger.ErrorContext(ctx, "pipeline_task_fault",
				slog.String("run_id", run.ID),
				slog.String("task", task.Name()),
				slog.String("error", err.Error()))
			break
		}

		for k, v := range partial {
			current[k] = v
		}

		run.Steps = append(run.Steps, StepRecord{
			Task:     task.Name(),
			Status:   current.Status(),
			Message:  current.Message(),
			Duration: elapsed,
		})

		p.logger.InfoContext(ctx, "pipeline_task_done",
			slog.String("run_id", run.ID),
			slog.String("task", task.Name()),
			slog.Int("task_number", i+1),
			slog.Int("task_total", len(p.tasks)),
			slog.String("status", string(current.Status())),
			slog.String("message", current.Message()),
			slog.Duration("duration", elapsed))

		if status := current.Status(); status.Halts() {
			switch status {
			case StatusSkipped:
				run.State = RunStateHaltedOnSkip
			case StatusCriticalError:
				run.State = RunStateHaltedOnFault
			default:
				run.State = RunStateHaltedOnError
			}
			p.logger.WarnContext(ctx, "pipeline_halted",
				slog.String("run_id", run.ID),
				slog.String("task", task.Name()),
				slog.String("status", string(status)))
			break
		}
	}

	if run.State == RunStateRunning {
		run.State = RunStateCompleted
	}

	current[KeySteps] = append([]StepRecord(nil), run.Steps...)
	run.Final = current

	p.logger.InfoContext(ctx, "pipeline_end",
		slog.String("run_id", run.ID),
		slog.String("state", string(run.State)),
		slog.String("status", string(current.Status())))

	return run
}

// safeExecute runs one task, converting a panic into an error so a
// misbehaving task halts the run instead of the process.
func (p *Pipeline) safeExecute(ctx context.Context, task Task, pc Context) (partial Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			partial = nil
			err = fmt.Errorf("task %s panicked: %v", task.Name(), r)
		}
	}()
	return task.Execute(ctx, pc)
}

// StepRecords extracts the audit trail from a final context.
func StepRecords(pc Context) []StepRecord {
	records, _ := pc[KeySteps].([]StepRecord)
	return records
}
