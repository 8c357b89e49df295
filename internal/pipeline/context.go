package pipeline

// Status represents the outcome of a task or a whole run.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
	StatusSkipped        Status = "skipped"
	StatusError          Status = "error"
	StatusCriticalError  Status = "critical_error"
)

// Halts reports whether a task reporting this status stops the run.
func (s Status) Halts() bool {
	switch s {
	case StatusError, StatusSkipped, StatusCriticalError:
		return true
	}
	return false
}

// Well-known context keys. Task payload keys live next to these; a later
// task may shadow an earlier value.
const (
	KeyStatus  = "status"
	KeyMessage = "message"
	KeyDate    = "date"
	KeySteps   = "steps"
)

// Context is the shared key→value state threaded through a pipeline run.
// Tasks receive a copy and return only the keys they add or change.
type Context map[string]any

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Status returns the current status, or empty when none was set yet.
func (c Context) Status() Status {
	s, _ := c[KeyStatus].(Status)
	return s
}

// Message returns the current human-readable message.
func (c Context) Message() string {
	m, _ := c[KeyMessage].(string)
	return m
}

// With adds one payload key to a partial update and returns it, so task
// results read as a single chained expression.
func (c Context) With(key string, value any) Context {
	c[key] = value
	return c
}

// Success builds a partial update reporting success.
func Success(message string) Context {
	return Context{KeyStatus: StatusSuccess, KeyMessage: message}
}

// PartialSuccess builds a partial update for a run where some categories
// were dropped but at least one survived.
func PartialSuccess(message string) Context {
	return Context{KeyStatus: StatusPartialSuccess, KeyMessage: message}
}

// Skipped builds a partial update that stops the run without marking it
// as failed (upstream produced nothing to work on).
func Skipped(message string) Context {
	return Context{KeyStatus: StatusSkipped, KeyMessage: message}
}

// Error builds a partial update that stops the run as failed.
func Error(message string) Context {
	return Context{KeyStatus: StatusError, KeyMessage: message}
}
