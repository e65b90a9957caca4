package core

import (
	"sort"
	"strings"
)

// cookieSet is the cookie_name -> last_seen_value state machine reduced
// left-to-right over every Set-Cookie header seen during a login flow.
// Attributes other than the name=value pair (path, secure, ...) are
// dropped, the portal never needs them back.
type cookieSet map[string]string

func parseCookieSet(merged string) cookieSet {
	set := cookieSet{}
	for _, pair := range strings.Split(merged, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		set[name] = value
	}
	return set
}

// merge folds a sequence of Set-Cookie header values into the set,
// later values overwrite earlier ones by cookie name.
func (c cookieSet) merge(setCookieHeaders []string) {
	for _, header := range setCookieHeaders {
		nameValue, _, _ := strings.Cut(header, ";")
		name, value, ok := strings.Cut(strings.TrimSpace(nameValue), "=")
		if !ok || name == "" {
			continue
		}
		c[name] = value
	}
}

func (c cookieSet) get(name string) string {
	return c[name]
}

func (c cookieSet) set(name, value string) {
	c[name] = value
}

// header renders the set as a Cookie request header value. Names are
// sorted so the rendering is deterministic and safe to persist.
func (c cookieSet) header() string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	var out strings.Builder
	for i, name := range names {
		if i > 0 {
			out.WriteString("; ")
		}
		out.WriteString(name)
		out.WriteString("=")
		out.WriteString(c[name])
	}
	return out.String()
}
