package meta

import (
	"os"
	"strings"
	"unicode"
)

const envPrefix = "${env."

// expandEnv replaces every ${env.KEY} in value with lookup(KEY); an unset
// key expands to "". A reference with an invalid key or no closing brace is
// kept literally.
func expandEnv(value string, lookup func(key string) string) string {
	if lookup == nil {
		lookup = os.Getenv
	}
	var b strings.Builder
	for {
		idx := strings.Index(value, envPrefix)
		if idx < 0 {
			b.WriteString(value)
			return b.String()
		}
		b.WriteString(value[:idx])
		rest := value[idx+len(envPrefix):]
		end := strings.IndexByte(rest, '}')
		if end < 0 {
			b.WriteString(value[idx:])
			return b.String()
		}
		if key := rest[:end]; validKey(key) {
			b.WriteString(lookup(key))
			value = rest[end+1:]
			continue
		}
		b.WriteString(envPrefix)
		value = rest
	}
}

func validKey(key string) bool {
	for _, r := range key {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return false
		}
	}
	return true
}
