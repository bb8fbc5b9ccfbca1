// SPDX-License-Identifier: MPL-2.0

// Package resolve flattens a parsed matrix into concrete argument vectors.
//
// Field references form an explicit graph ("ENV.FIELD" nodes) that is sorted
// once before anything runs, so dangling references and cycles surface
// deterministically. Positional placeholders are replaced by the invocation's
// override arguments as a unit, or by their declared default.
//
// Resolution is pure: the invoking process environment is passed in through
// [Invocation] rather than read from the process.
package resolve
