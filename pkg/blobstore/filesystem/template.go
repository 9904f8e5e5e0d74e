package filesystem

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

var templateTokenPattern = regexp.MustCompile(`\{[^{}]*\}`)

// expandTemplate expands the {year} {month} {day} {hour} {minute} and
// {env[NAME]} tokens in template against now. ok is false if any token
// could not be resolved (unknown token name, or an {env[NAME]} naming an
// unset environment variable), in which case the caller falls back to a
// flat layout rather than fail the write.
func expandTemplate(template string, now time.Time) (string, bool) {
	if template == "" {
		return "", true
	}

	ok := true
	expanded := templateTokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		inner := token[1 : len(token)-1]
		switch {
		case inner == "year":
			return fmt.Sprintf("%04d", now.Year())
		case inner == "month":
			return fmt.Sprintf("%02d", int(now.Month()))
		case inner == "day":
			return fmt.Sprintf("%02d", now.Day())
		case inner == "hour":
			return fmt.Sprintf("%02d", now.Hour())
		case inner == "minute":
			return fmt.Sprintf("%02d", now.Minute())
		case strings.HasPrefix(inner, "env[") && strings.HasSuffix(inner, "]"):
			name := inner[len("env[") : len(inner)-1]
			if name == "" {
				ok = false
				return ""
			}
			val, found := os.LookupEnv(name)
			if !found {
				ok = false
				return ""
			}
			return val
		default:
			ok = false
			return ""
		}
	})

	if !ok {
		return "", false
	}
	return expanded, true
}

// TemplateKey derives an object key for id from template, joining the
// expanded subdirectory (if any) with id using forward slashes, which is
// the separator object storage keys use regardless of host OS. An
// unresolvable or empty template falls back to the flat key "id".
func TemplateKey(template, id string) string {
	sub, ok := expandTemplate(template, time.Now())
	if !ok || sub == "" {
		return id
	}
	return strings.ReplaceAll(sub, string(os.PathSeparator), "/") + "/" + id
}
