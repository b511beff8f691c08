package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies one cached badge by provider route and parameters.
type Key struct {
	// Provider is the badge route name, e.g. "github/stars".
	Provider string

	// Params are the route parameters, e.g. {"owner": "foo", "repo": "bar"}.
	Params map[string]string
}

// String generates a deterministic cache key string.
// Format: badge:provider:param1=val1:param2=val2
//
// Example:
//
//	badge:github/stars:owner=foo:repo=bar
func (k Key) String() string {
	parts := []string{"badge", strings.Trim(k.Provider, "/")}

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params[name]))
		}
	}

	return strings.Join(parts, ":")
}
