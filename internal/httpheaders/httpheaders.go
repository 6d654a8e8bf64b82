// Package httpheaders prepares configured request headers for an HTTP
// engine transport.
package httpheaders

import (
	"net/http"
	"sort"
	"strings"
)

// Canonical returns a copy of src keyed by canonical header names. Blank
// names are dropped. When two keys differ only in case, the one that sorts
// last wins so the result does not depend on map order.
func Canonical(src map[string]string) map[string]string {
	out := make(map[string]string, len(src))

	keys := make([]string, 0, len(src))
	for key := range src {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := strings.TrimSpace(key)
		if name == "" {
			continue
		}
		out[http.CanonicalHeaderKey(name)] = src[key]
	}
	return out
}

// SetDefault sets name only when headers has no value for it yet. headers
// must already be canonical.
func SetDefault(headers map[string]string, name, value string) {
	name = http.CanonicalHeaderKey(name)
	if _, ok := headers[name]; ok {
		return
	}
	headers[name] = value
}
