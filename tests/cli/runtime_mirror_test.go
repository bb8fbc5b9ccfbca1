// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"encoding/json"
	"os"
	"slices"
	"strings"
	"testing"
)

// mirrorExemptions lists virtual_*.txtar scenarios that need no native
// counterpart, each with the reason.
type mirrorExemptions struct {
	Exact map[string]string `json:"exact"`
}

func loadMirrorExemptions(t *testing.T) mirrorExemptions {
	t.Helper()

	raw, err := os.ReadFile("runtime_mirror_exemptions.json")
	if err != nil {
		t.Fatalf("failed to read runtime mirror exemptions: %v", err)
	}

	var ex mirrorExemptions
	if err := json.Unmarshal(raw, &ex); err != nil {
		t.Fatalf("failed to parse runtime mirror exemptions: %v", err)
	}
	if ex.Exact == nil {
		ex.Exact = make(map[string]string)
	}
	return ex
}

// TestVirtualRuntimeMirrorCoverage requires every virtual-runtime scenario to
// have a native-runtime twin, so both runtimes see the same matrix behavior.
func TestVirtualRuntimeMirrorCoverage(t *testing.T) {
	t.Parallel()

	exemptions := loadMirrorExemptions(t)

	entries, err := os.ReadDir("testdata")
	if err != nil {
		t.Fatalf("failed to read testdata directory: %v", err)
	}

	var virtual []string
	native := make(map[string]bool)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".txtar") {
			continue
		}
		if rest, ok := strings.CutPrefix(name, "virtual_"); ok {
			virtual = append(virtual, rest)
		} else if rest, ok := strings.CutPrefix(name, "native_"); ok {
			native[rest] = true
		}
	}
	if len(virtual) == 0 {
		t.Fatal("no virtual_*.txtar files found in testdata")
	}
	slices.Sort(virtual)

	for _, rest := range virtual {
		if native[rest] {
			continue
		}
		if _, ok := exemptions.Exact["virtual_"+rest]; ok {
			continue
		}
		t.Errorf("missing native runtime mirror for virtual_%s (expected native_%s)", rest, rest)
	}

	for file, reason := range exemptions.Exact {
		if !slices.Contains(virtual, strings.TrimPrefix(file, "virtual_")) {
			t.Errorf("stale mirror exemption %q (%s): file not found in testdata", file, reason)
		}
	}
}
