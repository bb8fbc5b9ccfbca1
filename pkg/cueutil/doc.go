// SPDX-License-Identifier: MPL-2.0

// Package cueutil decodes CUE documents against an embedded schema and turns
// CUE errors into path-qualified validation errors.
//
//	//go:embed matrix_schema.cue
//	var schemaBytes []byte
//
//	doc, unified, err := cueutil.Decode[matrixDoc](schemaBytes, data, "#Matrix",
//	    cueutil.WithFilename("envmatrix.cue"))
//	if err != nil {
//	    return nil, err // *ValidationError carrying the CUE path
//	}
package cueutil
