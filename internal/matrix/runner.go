// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/envmatrix/envmatrix/internal/provision"
	"github.com/envmatrix/envmatrix/internal/report"
	"github.com/envmatrix/envmatrix/internal/resolve"
	"github.com/envmatrix/envmatrix/internal/runtime"
	"github.com/envmatrix/envmatrix/pkg/matrixfile"
)

type (
	// Clock is the time source for durations in the report.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
	}

	// Runner executes environments one at a time.
	Runner struct {
		Provisioner provision.Provisioner
		Executor    *runtime.Executor
		Logger      *slog.Logger
		// Clock defaults to the system clock.
		Clock Clock
	}

	systemClock struct{}
)

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// Load parses the matrix file at path and resolves it for inv. Configuration and resolution errors surface here,
// before any subprocess exists.
func Load(path string, inv resolve.Invocation) (*resolve.Plan, error) {
	m, err := matrixfile.Load(path)
	if err != nil {
		return nil, err
	}
	return resolve.Resolve(m, inv)
}

// Run executes runList in order and returns the report.
func (r *Runner) Run(ctx context.Context, plan *resolve.Plan, runList []string) *report.Report {
	clock := r.clock()
	rep := &report.Report{Started: clock.Now()}
	defer func() { rep.Duration = clock.Since(rep.Started) }()

	for i, name := range runList {
		if ctx.Err() != nil {
			markNotRun(rep, runList[i:])
			break
		}

		res := r.runEnv(ctx, plan, name)
		rep.Add(res)
		if res.Status == report.StatusInterrupted {
			markNotRun(rep, runList[i+1:])
			break
		}
	}

	return rep
}

func (r *Runner) runEnv(ctx context.Context, plan *resolve.Plan, name string) (res report.EnvResult) {
	clock := r.clock()
	start := clock.Now()
	logger := r.logger().With("env", name)
	res = report.EnvResult{Name: name, FailedIndex: -1}
	defer func() { res.Duration = clock.Since(start) }()

	env, ok := plan.Env(name)
	if !ok {
		res.Status = report.StatusProvisioningFailed
		res.Error = &resolve.UnknownEnvironmentError{Name: name, Known: plan.Order}
		return res
	}

	logger.Debug("provisioning environment")
	pctx, err := r.Provisioner.Provision(ctx, env)
	if err != nil {
		res.Error = err
		if ctx.Err() != nil || errors.Is(err, runtime.ErrInterrupted) {
			res.Status = report.StatusInterrupted
			res.ExitCode = int(runtime.ExitInterrupted)
			return res
		}
		res.Status = report.StatusProvisioningFailed
		res.ExitCode = 1
		var pErr *provision.ProvisioningFailedError
		if errors.As(err, &pErr) {
			res.Step = pErr.Step
			res.Command = pErr.Argv
			if pErr.ExitCode != 0 {
				res.ExitCode = int(pErr.ExitCode)
			}
		}
		logger.Warn("provisioning failed", "error", err)
		return res
	}
	defer func() {
		if cerr := pctx.Cleanup(); cerr != nil {
			logger.Warn("failed to tear down context", "error", cerr)
		}
	}()

	logger.Debug("running commands", "count", len(env.Commands))
	out := r.Executor.Execute(ctx, env, &pctx.Scope)
	switch {
	case out.Passed():
		res.Status = report.StatusPassed
	case out.Interrupted() || ctx.Err() != nil:
		res.Status = report.StatusInterrupted
		res.ExitCode = int(runtime.ExitInterrupted)
		res.FailedIndex = out.FailedIndex
		res.Command = out.Argv
		res.Error = out.Err
	default:
		res.Status = report.StatusFailed
		res.ExitCode = int(out.ExitCode)
		res.FailedIndex = out.FailedIndex
		res.Command = out.Argv
		res.Error = out.Err
	}
	logger.Debug("environment finished", "status", res.Status)
	return res
}

func markNotRun(rep *report.Report, names []string) {
	for _, name := range names {
		rep.Add(report.EnvResult{Name: name, Status: report.StatusNotRun, FailedIndex: -1})
	}
}

func (r *Runner) clock() Clock {
	if r.Clock != nil {
		return r.Clock
	}
	return systemClock{}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
