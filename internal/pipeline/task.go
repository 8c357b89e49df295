package pipeline

import "context"

// Task is one named unit of work in a pipeline. Execute consumes the
// shared context and returns a partial update containing only the keys
// it changes or adds; the engine merges the update with shallow key
// overwrite. A Task must not mutate the context it was given. Every
// partial update must carry a status; a returned error (or a panic) is
// treated as a fault and downgraded to critical_error by the engine.
type Task interface {
	Name() string
	Execute(ctx context.Context, pc Context) (Context, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc struct {
	TaskName string
	Fn       func(ctx context.Context, pc Context) (Context, error)
}

func (t TaskFunc) Name() string { return t.TaskName }

func (t TaskFunc) Execute(ctx context.Context, pc Context) (Context, error) {
	return t.Fn(ctx, pc)
}
