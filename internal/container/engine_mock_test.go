// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"
)

type (
	// mockCommandRecorder captures the commands an engine would run and
	// replaces them with the TestHelperProcess re-exec.
	mockCommandRecorder struct {
		mu          sync.Mutex
		invocations []mockInvocation
		exitCode    int
		stdout      string
		stderr      string
	}

	mockInvocation struct {
		Name string
		Args []string
	}
)

func newMockCommandRecorder() *mockCommandRecorder {
	return &mockCommandRecorder{}
}

func (m *mockCommandRecorder) commandFunc() ExecCommandFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		m.mu.Lock()
		m.invocations = append(m.invocations, mockInvocation{Name: name, Args: args})
		m.mu.Unlock()

		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...) //nolint:gosec // test helper re-exec
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			fmt.Sprintf("GO_HELPER_EXIT_CODE=%d", m.exitCode),
			"GO_HELPER_STDOUT=" + m.stdout,
			"GO_HELPER_STDERR=" + m.stderr,
		}
		return cmd
	}
}

func (m *mockCommandRecorder) lastArgs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.invocations) == 0 {
		return nil
	}
	return m.invocations[len(m.invocations)-1].Args
}

func (m *mockCommandRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invocations)
}

func (m *mockCommandRecorder) assertArgsContain(t *testing.T, expected string) {
	t.Helper()
	args := m.lastArgs()
	if !strings.Contains(strings.Join(args, " "), expected) {
		t.Errorf("expected args to contain %q, got: %v", expected, args)
	}
}

func (m *mockCommandRecorder) hasArgPair(flag, value string) bool {
	args := m.lastArgs()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}

func (m *mockCommandRecorder) firstArg() string {
	args := m.lastArgs()
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (m *mockCommandRecorder) hasArg(arg string) bool {
	return slices.Contains(m.lastArgs(), arg)
}

// TestHelperProcess is re-executed by mocked engines. It is not a real test.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}

	exitCode := 0
	if code := os.Getenv("GO_HELPER_EXIT_CODE"); code != "" {
		fmt.Sscanf(code, "%d", &exitCode) //nolint:errcheck // malformed input means exit 0
	}
	os.Exit(exitCode)
}
