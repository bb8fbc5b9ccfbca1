// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Decode compiles data, unifies it with the definition at defPath inside
// schema, validates the result and decodes it into a T. The unified value is
// returned too, for callers that need what Go decoding loses, such as field
// order.
//
// Schema problems are programming errors and are reported as internal
// errors. Problems in data come back as *ValidationError with the CUE path
// of the offending field.
func Decode[T any](schema, data []byte, defPath string, opts ...Option) (*T, cue.Value, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return nil, cue.Value{}, err
	}

	ctx := cuecontext.New()
	def := ctx.CompileBytes(schema).LookupPath(cue.ParsePath(defPath))
	if err := def.Err(); err != nil {
		return nil, cue.Value{}, fmt.Errorf("internal error: schema definition %s: %w", defPath, err)
	}

	doc := ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := doc.Err(); err != nil {
		return nil, cue.Value{}, FormatError(err, o.filename)
	}

	unified := def.Unify(doc)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return nil, cue.Value{}, FormatError(err, o.filename)
	}

	out := new(T)
	if err := unified.Decode(out); err != nil {
		return nil, cue.Value{}, FormatError(err, o.filename)
	}
	return out, unified, nil
}
