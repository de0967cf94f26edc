package datasource

import (
	"regexp"
	"strconv"
	"strings"
)

var paramExpr = regexp.MustCompile(`\{([^{}]+)}`)

// ResolveParams подставляет выражения {$a:$b:default}: берётся первый
// непустой параметр, литерал без $ — значение по умолчанию.
func ResolveParams(s string, params map[string]string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return paramExpr.ReplaceAllStringFunc(s, func(m string) string {
		inner := m[1 : len(m)-1]
		for _, part := range strings.Split(inner, ":") {
			part = strings.TrimSpace(part)
			if !strings.HasPrefix(part, "$") {
				return part
			}
			if v := params[strings.TrimPrefix(part, "$")]; v != "" {
				return v
			}
		}
		return ""
	})
}

// resolveInt — число из строки с параметрами; fallback при пустом или неположительном.
func resolveInt(s string, params map[string]string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(ResolveParams(s, params)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
