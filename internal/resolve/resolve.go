// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/envmatrix/envmatrix/internal/dag"
	"github.com/envmatrix/envmatrix/pkg/matrixfile"
)

// DefaultWorkDir is the work directory, relative to the matrix root, used when
// the matrix does not set one.
const DefaultWorkDir = ".envmatrix"

// Invocation carries everything outside the matrix file that resolution
// depends on.
type Invocation struct {
	// PosArgs replace every positional placeholder as a unit. An empty slice
	// means no override was supplied.
	PosArgs []string
	// Env is a snapshot of the invoking process environment, consulted for
	// {env:NAME} substitutions only.
	Env map[string]string
}

type resolver struct {
	m   *matrixfile.Matrix
	inv Invocation

	deps     map[string][]string
	commands map[string][][]string
	verbatim map[string][][]bool
}

// Resolve materializes every environment of m. It fails before producing
// anything if a reference dangles, crosses field kinds, or forms a cycle.
func Resolve(m *matrixfile.Matrix, inv Invocation) (*Plan, error) {
	r := &resolver{
		m:        m,
		inv:      inv,
		deps:     make(map[string][]string),
		commands: make(map[string][][]string),
		verbatim: make(map[string][][]bool),
	}

	names := append([]string{matrixfile.BaseEnvName}, m.Order...)
	g, err := r.graph(names)
	if err != nil {
		return nil, err
	}
	order, err := g.Order()
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CyclicReferenceError{Cycle: cycleErr.Cycle}
		}
		return nil, err
	}

	for _, key := range order {
		r.resolveField(key)
	}

	plan := &Plan{
		Matrix:  m,
		EnvList: slices.Clone(m.EnvList),
		Envs:    make(map[string]*Environment, len(names)),
		Order:   slices.Clone(m.Order),
		RootDir: m.RootDir,
	}
	for _, name := range names {
		env, _ := m.Env(name)
		plan.Envs[name] = r.environment(env, name)
	}
	plan.Settings = r.settings()
	return plan, nil
}

// graph builds the reference graph. Every field is a node; an edge runs from
// a field to each field it references.
func (r *resolver) graph(names []string) (*dag.Graph, error) {
	g := dag.New()
	for _, name := range names {
		env, _ := r.m.Env(name)
		depsKey := matrixfile.NodeKey(name, matrixfile.FieldDeps)
		cmdsKey := matrixfile.NodeKey(name, matrixfile.FieldCommands)
		g.AddNode(depsKey)
		g.AddNode(cmdsKey)

		for _, item := range env.Deps {
			if item.Ref == nil {
				continue
			}
			if err := r.checkRef(item.Ref, depsKey, matrixfile.FieldDeps); err != nil {
				return nil, err
			}
			g.AddEdge(depsKey, item.Ref.Key())
		}
		for _, cmd := range env.Commands {
			if cmd.Ref == nil {
				continue
			}
			if err := r.checkRef(cmd.Ref, cmdsKey, matrixfile.FieldCommands); err != nil {
				return nil, err
			}
			g.AddEdge(cmdsKey, cmd.Ref.Key())
		}
	}
	return g, nil
}

func (r *resolver) checkRef(ref *matrixfile.FieldRef, referrer string, want matrixfile.Field) error {
	if _, ok := r.m.Env(ref.Env); !ok {
		return &UnknownEnvironmentError{Name: ref.Env, Referrer: referrer, Known: slices.Clone(r.m.Order)}
	}
	if ref.Field != want {
		return &matrixfile.MalformedConfigError{
			Path:    r.m.Path,
			Section: ref.Section,
			Field:   string(want),
			Reason:  "a " + string(want) + " entry cannot reference " + ref.String(),
		}
	}
	return nil
}

// resolveField materializes one node. Topological order guarantees every
// referenced node is already resolved.
func (r *resolver) resolveField(key string) {
	name, field := splitKey(key)
	env, _ := r.m.Env(name)
	switch field {
	case matrixfile.FieldDeps:
		var out []string
		for _, item := range env.Deps {
			if item.Ref != nil {
				out = append(out, r.deps[item.Ref.Key()]...)
				continue
			}
			out = append(out, r.expand(item.Requirement))
		}
		r.deps[key] = out
	case matrixfile.FieldCommands:
		var (
			out  [][]string
			mark [][]bool
		)
		for _, cmd := range env.Commands {
			if cmd.Ref != nil {
				refKey := cmd.Ref.Key()
				for i, argv := range r.commands[refKey] {
					out = append(out, slices.Clone(argv))
					mark = append(mark, slices.Clone(r.verbatim[refKey][i]))
				}
				continue
			}
			if argv, verbatim := r.argv(cmd.Tokens, true); len(argv) > 0 {
				out = append(out, argv)
				mark = append(mark, verbatim)
			}
		}
		r.commands[key] = out
		r.verbatim[key] = mark
	}
}

// argv turns tokens into an argument vector. When posargs is set, override
// arguments replace positional placeholders and are marked verbatim so no
// later substitution touches them; otherwise placeholders take their default.
// Defaults and literals go through substitution.
func (r *resolver) argv(tokens []matrixfile.Token, posargs bool) ([]string, []bool) {
	var (
		out      []string
		verbatim []bool
	)
	for _, tok := range tokens {
		if !tok.IsPlaceholder() {
			out = append(out, r.expand(tok.Text))
			verbatim = append(verbatim, false)
			continue
		}
		if posargs && len(r.inv.PosArgs) > 0 {
			out = append(out, r.inv.PosArgs...)
			for range r.inv.PosArgs {
				verbatim = append(verbatim, true)
			}
			continue
		}
		for _, d := range tok.Default {
			out = append(out, r.expand(d))
			verbatim = append(verbatim, false)
		}
	}
	return out, verbatim
}

// toolArgv resolves create and install commands. Operator arguments belong to
// the environment's commands, so placeholders here always take their default.
func (r *resolver) toolArgv(tokens []matrixfile.Token) []string {
	argv, _ := r.argv(tokens, false)
	return argv
}

func (r *resolver) expand(s string) string {
	return matrixfile.Expand(s, r.lookup)
}

// lookup answers resolve-time substitutions. Keys it does not know, such as
// {envdir}, are left for the executor.
func (r *resolver) lookup(key string) (string, bool) {
	switch key {
	case "rootdir", "toxinidir", "tox_root":
		return r.m.RootDir, true
	case "/":
		return string(filepath.Separator), true
	case ":":
		return string(os.PathListSeparator), true
	}
	name, def, hasDefault, ok := matrixfile.ParseEnvKey(key)
	if !ok {
		return "", false
	}
	if v, set := r.inv.Env[name]; set {
		return v, true
	}
	if hasDefault {
		return r.expand(def), true
	}
	return "", true
}

func (r *resolver) environment(env *matrixfile.Environment, name string) *Environment {
	out := &Environment{
		Name:        name,
		Description: env.Description,
		Deps:        slices.Clone(r.deps[matrixfile.NodeKey(name, matrixfile.FieldDeps)]),
		Commands:    r.commands[matrixfile.NodeKey(name, matrixfile.FieldCommands)],
		Verbatim:    r.verbatim[matrixfile.NodeKey(name, matrixfile.FieldCommands)],
		SkipInstall: env.SkipInstall,
		UseDevelop:  env.UseDevelop,
		PassEnv:     slices.Clone(env.PassEnv),
		ChangeDir:   r.expand(env.ChangeDir),
		Derived:     env.Derived,
	}
	if env.SetEnv != nil {
		out.SetEnv = make(map[string]string, len(env.SetEnv))
		for _, k := range slices.Sorted(maps.Keys(env.SetEnv)) {
			out.SetEnv[k] = r.expand(env.SetEnv[k])
		}
	}
	if env.InstallCommand != nil {
		out.InstallCommand = r.toolArgv(env.InstallCommand.Tokens)
	}
	return out
}

func (r *resolver) settings() Settings {
	s := r.m.Settings
	out := Settings{
		Package:     s.Package,
		SkipPackage: s.SkipPackage,
	}
	workDir := r.expand(s.WorkDir)
	if workDir == "" {
		workDir = DefaultWorkDir
	}
	if !filepath.IsAbs(workDir) {
		workDir = filepath.Join(r.m.RootDir, workDir)
	}
	out.WorkDir = workDir
	if s.CreateCommand != nil {
		out.CreateCommand = r.toolArgv(s.CreateCommand.Tokens)
	}
	if s.InstallCommand != nil {
		out.InstallCommand = r.toolArgv(s.InstallCommand.Tokens)
	}
	return out
}

func splitKey(key string) (string, matrixfile.Field) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '.' {
			return key[:i], matrixfile.Field(key[i+1:])
		}
	}
	return key, ""
}
