// SPDX-License-Identifier: MPL-2.0

package runtime

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"
)

// TestHelperProcess is re-executed by the native runtime tests. It is not a real test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if v := os.Getenv("GO_HELPER_PRINT_ENV"); v != "" {
		fmt.Fprint(os.Stdout, os.Getenv(v))
	}
	if d, err := time.ParseDuration(os.Getenv("GO_HELPER_SLEEP")); err == nil {
		time.Sleep(d)
	}
	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE"))
	os.Exit(code)
}

func helperRequest(env map[string]string) *Request {
	full := map[string]string{"GO_WANT_HELPER_PROCESS": "1"}
	for k, v := range env {
		full[k] = v
	}
	return &Request{
		Argv: []string{os.Args[0], "-test.run=TestHelperProcess", "--"},
		Env:  full,
	}
}

func TestNativeRuntime_ExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}
	t.Parallel()

	rt := NewNativeRuntime()
	res := rt.Run(t.Context(), helperRequest(map[string]string{"GO_HELPER_EXIT_CODE": "3"}))
	if res.Error != nil {
		t.Fatalf("unexpected error: %v", res.Error)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
}

func TestNativeRuntime_OnlyRequestEnvironment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}
	t.Parallel()

	var out bytes.Buffer
	req := helperRequest(map[string]string{
		"GO_HELPER_PRINT_ENV": EnvVarEnvName,
		EnvVarEnvName:         "typing",
	})
	req.Stdout = &out

	res := NewNativeRuntime().Run(t.Context(), req)
	if !res.Success() {
		t.Fatalf("unexpected failure: %+v", res)
	}
	if out.String() != "typing" {
		t.Errorf("stdout = %q, want typing", out.String())
	}
}

func TestNativeRuntime_CommandNotFound(t *testing.T) {
	t.Parallel()

	res := NewNativeRuntime().Run(t.Context(), &Request{
		Argv: []string{"envmatrix-no-such-tool"},
		Env:  map[string]string{"PATH": t.TempDir()},
	})
	if res.ExitCode != ExitCommandNotFound {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitCommandNotFound)
	}
	if !errors.Is(res.Error, ErrCommandNotFound) {
		t.Errorf("error = %v, want ErrCommandNotFound", res.Error)
	}
}

func TestNativeRuntime_Timeout(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess test in short mode")
	}
	t.Parallel()

	req := helperRequest(map[string]string{"GO_HELPER_SLEEP": "10s"})
	req.Timeout = 100 * time.Millisecond

	res := NewNativeRuntime(WithWaitDelay(100 * time.Millisecond)).Run(t.Context(), req)
	if res.ExitCode != ExitTimeout {
		t.Errorf("exit code = %d, want %d", res.ExitCode, ExitTimeout)
	}
	if !errors.Is(res.Error, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", res.Error)
	}
}

func TestNativeRuntime_ParentCancelIsInterrupt(t *testing.T) {
	t.Parallel()

	ctx, cancel := contextWithCancel(t)
	cancel()

	res := NewNativeRuntime().Run(ctx, helperRequest(nil))
	if res.ExitCode != ExitInterrupted || !errors.Is(res.Error, ErrInterrupted) {
		t.Errorf("got %+v, want interrupted", res)
	}
}

func TestNativeRuntime_EmptyArgv(t *testing.T) {
	t.Parallel()

	if res := NewNativeRuntime().Run(t.Context(), &Request{}); res.Success() {
		t.Error("empty argv should fail")
	}
}
