// SPDX-License-Identifier: MPL-2.0

// Package matrixfile parses environment-matrix definitions into a typed model.
//
// Three on-disk formats produce the same [Matrix]:
//
//   - section-based INI (envmatrix.ini, tox.ini)
//   - CUE (envmatrix.cue), validated against an embedded schema
//   - pyproject.toml, under [tool.envmatrix]
//
// Parsing is all-or-nothing: any structural problem yields a
// *MalformedConfigError naming the section and field, and no partial model.
//
// Cross-environment references ({[testenv:lint]commands}) and positional
// placeholders ({posargs:DEFAULT}) are kept symbolic here. The resolve package
// turns them into concrete argument vectors.
package matrixfile
