package testcases

import (
	"context"
	"sync"
)

// Runner records commands instead of running them.
// OnRun, if set, produces the result and may have side effects like writing an output file.
type Runner struct {
	OnRun func(name string, args []string) ([]byte, error)
	mu    sync.Mutex
	calls [][]string
}

func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.OnRun == nil {
		return nil, nil
	}
	return r.OnRun(name, args)
}

// Calls returns every command line so far, name first
func (r *Runner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}
