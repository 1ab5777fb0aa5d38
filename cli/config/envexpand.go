// Package config handles YAML and TOML config file loading for rdint.
package config

import (
	"os"
	"regexp"
)

// envRef matches $${...} (escaped), ${VAR} and ${VAR:-default}.
var envRef = regexp.MustCompile(`\$(\$?)\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in a config document.
//
//	${VAR}            value of VAR, empty when unset
//	${VAR:-default}   value of VAR, default when unset or empty
//	$${VAR}           the literal text ${VAR}
//
// An unset variable is not an error; the field it feeds is validated later
// (an empty --adapter-url, say).
func ExpandEnv(input string) string {
	return expandWith(input, os.LookupEnv)
}

func expandWith(input string, lookup func(string) (string, bool)) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if m[1] != "" {
			return ref[1:]
		}
		if v, ok := lookup(m[2]); ok && v != "" {
			return v
		}
		return m[3]
	})
}
