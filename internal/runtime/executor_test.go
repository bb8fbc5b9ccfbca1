// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/envmatrix/envmatrix/internal/resolve"
)

// fakeRuntime records requests and answers with scripted results keyed by argv[0].
type fakeRuntime struct {
	requests []*Request
	results  map[string]*Result
	onRun    func(req *Request)
}

func (f *fakeRuntime) Name() string    { return "fake" }
func (f *fakeRuntime) Available() bool { return true }

func (f *fakeRuntime) Run(_ context.Context, req *Request) *Result {
	f.requests = append(f.requests, req)
	if f.onRun != nil {
		f.onRun(req)
	}
	if res, ok := f.results[req.Argv[0]]; ok {
		return res
	}
	return NewSuccessResult()
}

func (f *fakeRuntime) argvs() [][]string {
	out := make([][]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Argv
	}
	return out
}

func TestExecutor_RunsCommandsInOrder(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{}
	var stderr bytes.Buffer
	x := &Executor{Runtime: rt, Env: &MockEnvBuilder{Env: map[string]string{"K": "V"}}, Stderr: &stderr}
	env := &resolve.Environment{
		Name:     "py",
		Commands: [][]string{{"coverage", "erase"}, {"pytest", "--basetemp={envtmpdir}"}},
	}
	root := filepath.FromSlash("/proj")
	scope := &Scope{EnvName: "py", RootDir: root, TmpDir: "/w/py/tmp"}

	out := x.Execute(t.Context(), env, scope)
	if !out.Passed() {
		t.Fatalf("expected pass, got %v", out.Err)
	}
	want := [][]string{{"coverage", "erase"}, {"pytest", "--basetemp=/w/py/tmp"}}
	if diff := cmp.Diff(want, rt.argvs()); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	if out.Ran != 2 || out.FailedIndex != -1 {
		t.Errorf("outcome = %+v", out)
	}
	for _, req := range rt.requests {
		if req.Dir != root || req.Env["K"] != "V" {
			t.Errorf("request dir/env = %q/%v", req.Dir, req.Env)
		}
	}
	if !strings.Contains(stderr.String(), "py: commands[1]> pytest --basetemp=/w/py/tmp") {
		t.Errorf("missing command banner in %q", stderr.String())
	}
}

func TestExecutor_VerbatimArgsNotSubstituted(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{}
	x := &Executor{Runtime: rt, Env: &MockEnvBuilder{}}
	env := &resolve.Environment{
		Name:     "py",
		Commands: [][]string{{"echo", "{envname}", "{envname}", "{envdir}"}, {"echo", "{envdir}"}},
		Verbatim: [][]bool{{false, false, true, true}},
	}
	scope := &Scope{EnvName: "py", Dir: "/w/py-1"}

	if out := x.Execute(t.Context(), env, scope); !out.Passed() {
		t.Fatalf("expected pass, got %v", out.Err)
	}
	want := [][]string{{"echo", "py", "{envname}", "{envdir}"}, {"echo", "/w/py-1"}}
	if diff := cmp.Diff(want, rt.argvs()); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestExecutor_FailFast(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{results: map[string]*Result{"flake8": NewExitCodeResult(2)}}
	x := &Executor{Runtime: rt, Env: &MockEnvBuilder{}}
	env := &resolve.Environment{
		Name:     "lint",
		Commands: [][]string{{"black", "--check", "."}, {"flake8", "src"}, {"isort", "--check", "."}},
	}

	out := x.Execute(t.Context(), env, &Scope{EnvName: "lint"})
	if out.Passed() {
		t.Fatal("expected failure")
	}
	if out.FailedIndex != 1 || out.ExitCode != 2 || out.Ran != 2 {
		t.Errorf("outcome = %+v", out)
	}
	if diff := cmp.Diff([]string{"flake8", "src"}, out.Argv); diff != "" {
		t.Errorf("failing argv mismatch (-want +got):\n%s", diff)
	}
	var cmdErr *CommandFailedError
	if !errors.As(out.Err, &cmdErr) || cmdErr.Index != 1 {
		t.Fatalf("expected *CommandFailedError at index 1, got %v", out.Err)
	}
	if len(rt.requests) != 2 {
		t.Errorf("commands after the failure ran: %v", rt.argvs())
	}
}

func TestExecutor_InterruptStopsEnvironment(t *testing.T) {
	t.Parallel()

	ctx, cancel := contextWithCancel(t)
	rt := &fakeRuntime{results: map[string]*Result{"pytest": NewErrorResult(ExitInterrupted, ErrInterrupted)}}
	rt.onRun = func(req *Request) {
		if req.Argv[0] == "pytest" {
			cancel()
		}
	}
	x := &Executor{Runtime: rt, Env: &MockEnvBuilder{}}
	env := &resolve.Environment{Name: "py", Commands: [][]string{{"pytest"}, {"coverage", "report"}}}

	out := x.Execute(ctx, env, &Scope{EnvName: "py"})
	if !out.Interrupted() {
		t.Fatalf("expected interrupted outcome, got %v", out.Err)
	}
	if out.ExitCode != ExitInterrupted || out.FailedIndex != 0 {
		t.Errorf("outcome = %+v", out)
	}
	if len(rt.requests) != 1 {
		t.Errorf("commands ran after interrupt: %v", rt.argvs())
	}
}

func TestExecutor_CancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := contextWithCancel(t)
	cancel()
	rt := &fakeRuntime{}
	x := &Executor{Runtime: rt, Env: &MockEnvBuilder{}}

	out := x.Execute(ctx, &resolve.Environment{Name: "docs", Commands: [][]string{{"sphinx-build"}}}, &Scope{})
	if !out.Interrupted() || out.Ran != 0 || len(rt.requests) != 0 {
		t.Errorf("outcome = %+v, requests = %d", out, len(rt.requests))
	}
}

func TestExecutor_ContainerTargetUsesContainerRuntime(t *testing.T) {
	t.Parallel()

	host := &fakeRuntime{}
	ctr := &fakeRuntime{}
	x := &Executor{Runtime: host, Container: ctr, Env: &MockEnvBuilder{}}
	scope := &Scope{EnvName: "py", Target: Target{Image: "envmatrix-py:1", HostRoot: "/proj", ContainerRoot: "/src"}}

	out := x.Execute(t.Context(), &resolve.Environment{Name: "py", Commands: [][]string{{"pytest"}}}, scope)
	if !out.Passed() {
		t.Fatalf("unexpected failure: %v", out.Err)
	}
	if len(host.requests) != 0 || len(ctr.requests) != 1 {
		t.Errorf("host=%d container=%d", len(host.requests), len(ctr.requests))
	}
	if ctr.requests[0].Target.Image != "envmatrix-py:1" {
		t.Errorf("target not forwarded: %+v", ctr.requests[0].Target)
	}
}

func TestExecutor_EnvBuildFailure(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{}
	x := &Executor{Runtime: rt, Env: &MockEnvBuilder{Err: errors.New("bad env")}}

	out := x.Execute(t.Context(), &resolve.Environment{Name: "py", Commands: [][]string{{"pytest"}}}, &Scope{})
	if out.Passed() || len(rt.requests) != 0 {
		t.Errorf("outcome = %+v", out)
	}
}
