// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

type Id int

const (
	MatrixNotFoundId Id = iota + 1
	MalformedConfigId
	UnknownEnvironmentId
	CyclicReferenceId
	ProvisioningFailedId
	CommandFailedId
	ContainerEngineNotFoundId
	ConfigLoadFailedId
	InvalidRuntimeModeId
	InterruptedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // project documentation for this issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	matrixNotFoundIssue = &Issue{
		id: MatrixNotFoundId,
		mdMsg: `
# No matrix file found!

envmatrix looked for a configuration in the current directory and found none.

## Files checked (first match wins):
1. envmatrix.cue
2. envmatrix.ini
3. tox.ini
4. pyproject.toml (only when it has a [tool.envmatrix] or [tool.tox] table)

## Things you can try:
- Point at a file explicitly:
~~~
$ envmatrix run -c path/to/tox.ini
~~~

- Create a minimal tox.ini:
~~~ini
[tox]
env_list = py312

[testenv]
deps = pytest
commands = pytest {posargs}
~~~`,
		extLinks: []HttpLink{"https://tox.wiki/en/latest/config.html"},
	}

	malformedConfigIssue = &Issue{
		id: MalformedConfigId,
		mdMsg: `
# Failed to parse the matrix file!

The configuration could not be read. The error message names the file and,
where possible, the section and key that were rejected.

## Common causes:
- A continuation line that is not indented
- An unterminated ` + "`{`" + ` in a substitution such as ` + "`{env:HOME`" + `
- A ` + "`[tool.tox]`" + ` table whose values are not strings or string arrays
- A CUE value that does not satisfy the environment schema

## Things you can try:
- Print what envmatrix understood of the file:
~~~
$ envmatrix list -v
~~~`,
	}

	unknownEnvironmentIssue = &Issue{
		id: UnknownEnvironmentId,
		mdMsg: `
# Unknown environment!

An environment was requested with ` + "`-e`" + `, named on the command line,
or referenced through ` + "`{[testenv:name]key}`" + `, but no section defines it.

## Things you can try:
- List the environments the file declares:
~~~
$ envmatrix list
~~~
- Check for typos in factor names such as ` + "`py312-lint`" + `.`,
	}

	cyclicReferenceIssue = &Issue{
		id: CyclicReferenceId,
		mdMsg: `
# Cyclic reference!

Resolving a value led back to itself. This happens when two sections
substitute each other, for example ` + "`{[testenv:a]deps}`" + ` inside
` + "`testenv:b`" + ` and the reverse.

No environment was started. Break the cycle and run again.`,
	}

	provisioningFailedIssue = &Issue{
		id: ProvisioningFailedId,
		mdMsg: `
# Provisioning failed!

The isolated environment could not be created or its dependencies could not
be installed, so none of its commands were run.

## Things you can try:
- Re-run with verbose output to see the installer's messages:
~~~
$ envmatrix run -e <env> -v
~~~
- Run the ` + "`create_command`" + ` and ` + "`install_command`" + ` shown by
  ` + "`envmatrix plan <env>`" + ` by hand.
- Remove the work directory (` + "`.envmatrix`" + ` by default) and retry.`,
	}

	commandFailedIssue = &Issue{
		id: CommandFailedId,
		mdMsg: `
# Command failed!

A command exited with a non-zero status. The remaining commands of that
environment were skipped; other environments still ran.

The summary names the failing command and its index in ` + "`commands`" + `.`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

The container provisioner needs Podman or Docker on PATH.

## Things you can try:
- Install Podman: https://podman.io/getting-started/installation
- Install Docker: https://docs.docker.com/get-docker/
- Use host provisioning instead:
~~~
$ envmatrix run --provisioner local
~~~`,
		extLinks: []HttpLink{"https://podman.io", "https://docs.docker.com"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The user configuration file could not be loaded. envmatrix falls back to
defaults when the file is absent, so this means the file exists but is invalid.

## Things you can try:
- Show where the file lives:
~~~
$ envmatrix config path
~~~
- Regenerate a default configuration:
~~~
$ envmatrix config init --force
~~~`,
	}

	invalidRuntimeModeIssue = &Issue{
		id: InvalidRuntimeModeId,
		mdMsg: `
# Invalid runtime mode!

Commands can be executed by one of these runtimes:
- ` + "`native`" + `: the host process launcher (default)
- ` + "`virtual`" + `: the built-in POSIX shell interpreter

Provisioning can be ` + "`local`" + ` or ` + "`container`" + `.`,
	}

	interruptedIssue = &Issue{
		id: InterruptedId,
		mdMsg: `
# Run interrupted!

The running command was stopped and the environments that had not started
were reported as not run. Temporary environment directories were removed.`,
	}

	issues = map[Id]*Issue{
		matrixNotFoundIssue.Id():          matrixNotFoundIssue,
		malformedConfigIssue.Id():         malformedConfigIssue,
		unknownEnvironmentIssue.Id():      unknownEnvironmentIssue,
		cyclicReferenceIssue.Id():         cyclicReferenceIssue,
		provisioningFailedIssue.Id():      provisioningFailedIssue,
		commandFailedIssue.Id():           commandFailedIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		invalidRuntimeModeIssue.Id():      invalidRuntimeModeIssue,
		interruptedIssue.Id():             interruptedIssue,
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, i := range issues {
		out = append(out, i)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
