// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/envmatrix/envmatrix/pkg/cueutil"
)

// ErrNotFound is returned by Find when no matrix file exists in a directory.
var ErrNotFound = errors.New("no matrix file found")

// Candidates lists the file names Find looks for, in priority order.
var Candidates = []string{"envmatrix.cue", "envmatrix.ini", "tox.ini", "pyproject.toml"}

// Find returns the path of the first matrix file in dir. A pyproject.toml only
// counts when it carries a matrix table.
func Find(dir string) (string, error) {
	for _, name := range Candidates {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if name == "pyproject.toml" {
			data, err := os.ReadFile(p)
			if err != nil || !HasMatrixTable(data) {
				continue
			}
		}
		return p, nil
	}
	return "", fmt.Errorf("%w in %s (looked for %s)", ErrNotFound, dir, strings.Join(Candidates, ", "))
}

// Load reads and parses the matrix file at path, choosing the format from the
// file name.
func Load(path string) (*Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read matrix file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return nil, malformed(path, "", "", "%v", err)
	}
	return Parse(path, data)
}

// Parse parses matrix text. The format is inferred from the path extension.
func Parse(path string, data []byte) (*Matrix, error) {
	switch DetectFormat(path) {
	case FormatCUE:
		return ParseCUE(path, data)
	case FormatTOML:
		return ParseTOML(path, data)
	default:
		return ParseINI(path, data)
	}
}

// DetectFormat infers the format from a file name.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE
	case ".toml":
		return FormatTOML
	default:
		return FormatINI
	}
}
