// SPDX-License-Identifier: MPL-2.0

package container

import "testing"

func TestLabelVolume(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/src:/workspace", "/src:/workspace:z"},
		{"/src:/workspace:ro", "/src:/workspace:ro,z"},
		{"/src:/workspace:Z", "/src:/workspace:Z"},
		{"/src:/workspace:ro,z", "/src:/workspace:ro,z"},
		{"named", "named"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := labelVolume(tt.in); got != tt.want {
				t.Errorf("labelVolume(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
