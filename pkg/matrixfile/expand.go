// SPDX-License-Identifier: MPL-2.0

package matrixfile

import "strings"

// Expand replaces every {KEY} group in s for which lookup reports a value.
// Groups lookup does not know are left as written.
func Expand(s string, lookup func(key string) (string, bool)) string {
	if !strings.Contains(s, "{") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] != '{' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := matchBrace(s, i)
		if end < 0 {
			b.WriteString(s[i:])
			break
		}
		if v, ok := lookup(s[i+1 : end]); ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : end+1])
		}
		i = end + 1
	}
	return b.String()
}

// ParseEnvKey splits an "env:NAME[:DEFAULT]" substitution key.
func ParseEnvKey(key string) (name, def string, hasDefault, ok bool) {
	rest, ok := strings.CutPrefix(key, "env:")
	if !ok || rest == "" {
		return "", "", false, false
	}
	name, def, hasDefault = strings.Cut(rest, ":")
	return name, def, hasDefault, true
}
