// Package template expands placeholders in object key prefixes, so that
// releases can be published under e.g. "ota/{product}/{date}".
package template

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"time"
)

// Expand replaces {name} placeholders in text.
//
// Built-in placeholders, evaluated at now in UTC:
//
//	{date}  - YYYY-MM-DD
//	{month} - YYYY-MM
//	{unix}  - Unix timestamp
//	{user}  - current username
//
// vars adds placeholders and overrides built-in ones. An unknown
// placeholder is an error.
func Expand(text string, now time.Time, vars map[string]string) (string, error) {
	if !strings.Contains(text, "{") {
		return text, nil
	}
	now = now.UTC()

	var b strings.Builder
	rest := text
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("template %q: unclosed placeholder", text)
		}
		name := rest[open+1 : open+end]
		value, ok := vars[name]
		if !ok {
			value, ok = builtin(name, now)
		}
		if !ok {
			return "", fmt.Errorf("template %q: unknown placeholder {%s}", text, name)
		}
		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[open+end+1:]
	}
}

func builtin(name string, now time.Time) (string, bool) {
	switch name {
	case "date":
		return now.Format("2006-01-02"), true
	case "month":
		return now.Format("2006-01"), true
	case "unix":
		return strconv.FormatInt(now.Unix(), 10), true
	case "user":
		if u, err := user.Current(); err == nil {
			return u.Username, true
		}
		return "unknown", true
	}
	return "", false
}
