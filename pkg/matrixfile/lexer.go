// SPDX-License-Identifier: MPL-2.0

package matrixfile

import (
	"regexp"
	"strings"

	shlex "github.com/anmitsu/go-shlex"
)

var (
	wholeRefPattern = regexp.MustCompile(`^\{\[([^\[\]]*)\]([^{}\[\]]*)\}$`)
	envNamePattern  = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.+-]*$`)
)

// ValidEnvName reports whether name can be used as an environment name.
func ValidEnvName(name string) bool {
	return envNamePattern.MatchString(name)
}

// logicalLines splits a multi-line field value into logical lines. A trailing
// backslash joins a line with the next one; blank lines and # comments are dropped.
func logicalLines(value string) []string {
	var out []string
	pending := ""
	continued := false
	for _, raw := range strings.Split(value, "\n") {
		line := strings.TrimSpace(raw)
		if !continued && (line == "" || strings.HasPrefix(line, "#")) {
			continue
		}
		if continued {
			line = strings.TrimSpace(pending + " " + line)
		}
		if body, ok := strings.CutSuffix(line, `\`); ok {
			pending, continued = strings.TrimRight(body, " \t"), true
			continue
		}
		pending, continued = "", false
		if line != "" {
			out = append(out, line)
		}
	}
	if continued && pending != "" {
		out = append(out, pending)
	}
	return out
}

// sectionEnvName maps a reference section to an environment name. It returns
// "" when the section cannot name an environment.
func sectionEnvName(section string) string {
	switch section {
	case "testenv", "env_run_base", "base":
		return BaseEnvName
	}
	for _, prefix := range []string{"testenv:", "env:"} {
		if name, ok := strings.CutPrefix(section, prefix); ok {
			if ValidEnvName(name) {
				return name
			}
			return ""
		}
	}
	if ValidEnvName(section) {
		return section
	}
	return ""
}

// parseRef recognizes a whole-line field reference.
func parseRef(line string) (*FieldRef, bool, error) {
	if !strings.HasPrefix(line, "{[") {
		return nil, false, nil
	}
	m := wholeRefPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false, &lineError{line: line, reason: "invalid reference syntax"}
	}
	section := strings.TrimSpace(m[1])
	field := Field(strings.TrimSpace(m[2]))
	if field != FieldDeps && field != FieldCommands {
		return nil, false, &lineError{line: line, reason: "unsupported reference field " + quote(string(field))}
	}
	env := sectionEnvName(section)
	if env == "" {
		return nil, false, &lineError{line: line, reason: "reference to invalid section " + quote(section)}
	}
	return &FieldRef{Section: section, Env: env, Field: field}, true, nil
}

// ParseCommand parses one logical command line.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	ref, ok, err := parseRef(line)
	if err != nil {
		return Command{}, err
	}
	if ok {
		return Command{Ref: ref}, nil
	}
	tokens, err := tokenize(line)
	if err != nil {
		return Command{}, err
	}
	return Command{Tokens: tokens}, nil
}

// ParseItem parses one logical dependency line.
func ParseItem(line string) (Item, error) {
	line = strings.TrimSpace(line)
	ref, ok, err := parseRef(line)
	if err != nil {
		return Item{}, err
	}
	if ok {
		return Item{Ref: ref}, nil
	}
	if strings.Contains(line, "{[") {
		return Item{}, &lineError{line: line, reason: "a reference must occupy the whole line"}
	}
	return Item{Requirement: line}, nil
}

// tokenize splits a command line into tokens. Positional placeholders are cut
// out first so their defaults stay grouped; the remaining text is shell-split.
func tokenize(line string) ([]Token, error) {
	var tokens []Token
	var literal strings.Builder

	flush := func() error {
		if literal.Len() == 0 {
			return nil
		}
		words, err := shlex.Split(literal.String(), true)
		literal.Reset()
		if err != nil {
			return &lineError{line: line, reason: "unbalanced quotes"}
		}
		for _, w := range words {
			if w == "[]" {
				tokens = append(tokens, Token{Kind: TokenPosArgs})
				continue
			}
			tokens = append(tokens, Token{Kind: TokenLiteral, Text: w})
		}
		return nil
	}

	var inQuote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			} else if c == '\\' && inQuote == '"' && i+1 < len(line) {
				literal.WriteByte(c)
				i++
				c = line[i]
			}
			literal.WriteByte(c)
		case c == '\\' && i+1 < len(line):
			literal.WriteByte(c)
			literal.WriteByte(line[i+1])
			i++
		case c == '\'' || c == '"':
			inQuote = c
			literal.WriteByte(c)
		case c == '{':
			end := matchBrace(line, i)
			if end < 0 {
				return nil, &lineError{line: line, reason: "unbalanced braces"}
			}
			inner := line[i+1 : end]
			switch {
			case inner == "posargs" || strings.HasPrefix(inner, "posargs:"):
				if err := flush(); err != nil {
					return nil, err
				}
				tok := Token{Kind: TokenPosArgs}
				if def, ok := strings.CutPrefix(inner, "posargs:"); ok {
					words, err := shlex.Split(def, true)
					if err != nil {
						return nil, &lineError{line: line, reason: "unbalanced quotes in placeholder default"}
					}
					tok.Default, tok.HasDefault = words, true
				}
				tokens = append(tokens, tok)
			case strings.HasPrefix(inner, "["):
				return nil, &lineError{line: line, reason: "a reference must occupy the whole line"}
			default:
				literal.WriteString(line[i : end+1])
			}
			i = end
		default:
			literal.WriteByte(c)
		}
	}
	if inQuote != 0 {
		return nil, &lineError{line: line, reason: "unbalanced quotes"}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return tokens, nil
}

// matchBrace returns the index of the brace closing the one at open, or -1.
func matchBrace(s string, open int) int {
	depth := 0
	var inQuote byte
	for j := open; j < len(s); j++ {
		c := s[j]
		if inQuote != 0 {
			if c == inQuote {
				inQuote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inQuote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func quote(s string) string { return `"` + s + `"` }
