package env

import (
	"strings"
)

// Compose applies extra KEY=VALUE pairs on top of base and returns the child
// environment. Keys already in base are overridden in place; new keys are
// appended in the order given. ${VAR} references in extra values expand
// against the environment composed so far, so later pairs can build on
// earlier ones. Malformed pairs and empty keys are skipped.
func Compose(base []string, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	index := make(map[string]int, len(base)+len(extra))
	vars := make(map[string]string, len(base)+len(extra))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if i, seen := index[k]; seen {
			out[i] = kv
		} else {
			index[k] = len(out)
			out = append(out, kv)
		}
		vars[k] = v
	}
	for _, kv := range extra {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		v = Expand(v, vars)
		vars[k] = v
		if i, seen := index[k]; seen {
			out[i] = k + "=" + v
			continue
		}
		index[k] = len(out)
		out = append(out, k+"="+v)
	}
	return out
}

// Expand replaces ${VAR} with its value from vars. Unknown variables expand
// to the empty string; a "${" without a closing brace is kept as is.
func Expand(s string, vars map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(vars[s[i+2:i+2+j]])
		s = s[i+3+j:]
	}
}
