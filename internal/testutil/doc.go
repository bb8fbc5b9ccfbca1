// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by envmatrix tests: filesystem
// setup that fails the test on error (MustChdir, MustMkdirAll, WriteFile),
// a manually advanced clock, and a semaphore bounding concurrent container tests.
package testutil
