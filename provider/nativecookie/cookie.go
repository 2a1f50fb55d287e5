package nativecookie

import "strings"

// ExtractCookieToken finds the value of cookie name in Set-Cookie shaped header values.
// A single value may join several cookies with commas or semicolons, and attribute parts
// (Path, Expires with its embedded comma, HttpOnly...) are skipped. Empty values do not count.
func ExtractCookieToken(headerValues []string, name string) (string, bool) {
	for _, header := range headerValues {
		for _, part := range strings.FieldsFunc(header, func(r rune) bool { return r == ',' || r == ';' }) {
			key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(key), name) {
				continue
			}
			value = strings.Trim(strings.TrimSpace(value), `"`)
			if value != "" {
				return value, true
			}
		}
	}
	return "", false
}
