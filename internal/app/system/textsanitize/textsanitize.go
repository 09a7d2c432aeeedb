// Package textsanitize cleans single-line form input before it is stored or
// used. It uses bluemonday's strict policy to drop markup entirely.
package textsanitize

import (
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text strips tags, folds line breaks and tabs into spaces, collapses runs of
// whitespace and trims the result. Entities are decoded afterwards so that
// values such as tokens containing "&" survive unchanged.
func Text(s string) string {
	if s == "" {
		return ""
	}
	cleaned := html.UnescapeString(getPolicy().Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}

// URL returns a cleaned absolute http(s) URL, or "" if s is not one.
func URL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\r\n<>\"'`") {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return ""
	}
	u.Scheme = scheme
	return u.String()
}

// Bool coerces a form or stored value into a boolean. Checkbox values
// ("on", "1", "true", "yes") are true; everything else is false.
func Bool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "on", "true", "yes":
			return true
		}
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	}
	return false
}
