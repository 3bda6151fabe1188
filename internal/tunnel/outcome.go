package tunnel

import "context"

// Outcome is the terminal result of a supervised task. Every task produces
// exactly one Outcome when it returns; failures are data, not panics.
type Outcome struct {
	err error
}

// Succeeded returns the successful Outcome.
func Succeeded() Outcome {
	return Outcome{}
}

// Failed returns an Outcome carrying the task's error.
func Failed(err error) Outcome {
	return Outcome{err: err}
}

// Err returns the task error, or nil for a successful outcome.
func (o Outcome) Err() error {
	return o.err
}

// IsError reports whether the outcome carries an error.
func (o Outcome) IsError() bool {
	return o.err != nil
}

// TaskFunc is the body of a supervised task. The context is the task's
// cancellation subscription: it is canceled when the supervisor shuts the
// group down, or when the task's own handle is stopped. Implementations must
// race every blocking operation against ctx.Done().
type TaskFunc func(ctx context.Context) Outcome
