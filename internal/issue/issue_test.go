// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		contains string
	}{
		{MatrixNotFoundId, "No matrix file found"},
		{MalformedConfigId, "Failed to parse the matrix file"},
		{UnknownEnvironmentId, "Unknown environment"},
		{CyclicReferenceId, "Cyclic reference"},
		{ProvisioningFailedId, "Provisioning failed"},
		{CommandFailedId, "Command failed"},
		{ContainerEngineNotFoundId, "Container engine not found"},
		{ConfigLoadFailedId, "Failed to load configuration"},
		{InvalidRuntimeModeId, "Invalid runtime mode"},
		{InterruptedId, "Run interrupted"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			i := Get(tt.id)
			if i == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if i.Id() != tt.id {
				t.Errorf("Id() = %d, want %d", i.Id(), tt.id)
			}
			if !strings.Contains(string(i.MarkdownMsg()), tt.contains) {
				t.Errorf("MarkdownMsg() should contain %q", tt.contains)
			}
		})
	}

	if Get(Id(9999)) != nil {
		t.Error("Get() of an unknown id should return nil")
	}
}

func TestValues_SortedAndComplete(t *testing.T) {
	all := Values()
	if len(all) != int(InterruptedId) {
		t.Fatalf("Values() returned %d issues, want %d", len(all), InterruptedId)
	}
	for idx, i := range all {
		if i.Id() != Id(idx+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", idx, i.Id(), idx+1)
		}
		if strings.TrimSpace(string(i.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no content", i.Id())
		}
	}
}

func TestIssue_LinksAreCloned(t *testing.T) {
	i := Get(ContainerEngineNotFoundId)
	links := i.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links")
	}
	links[0] = "modified"
	if i.ExtLinks()[0] == "modified" {
		t.Error("ExtLinks() should return a clone")
	}
}

func TestIssue_Render(t *testing.T) {
	original := render
	defer func() { render = original }()

	var got string
	render = func(in, _ string) (string, error) {
		got = in
		return in, nil
	}

	if _, err := Get(MatrixNotFoundId).Render(""); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(got, "## See also") || !strings.Contains(got, "tox.wiki") {
		t.Errorf("links section missing:\n%s", got)
	}

	if _, err := Get(CommandFailedId).Render(""); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if strings.Contains(got, "See also") {
		t.Error("issue without links should not render a See also section")
	}
}

func TestAllIssuesRenderWithGlamour(t *testing.T) {
	for _, i := range Values() {
		if _, err := i.Render("dark"); err != nil {
			t.Errorf("issue %d failed to render: %v", i.Id(), err)
		}
	}
}
