package scoring

import "strings"

// Sanitize applies the input contract shared by every entry point: trim
// whitespace and drop one leading "@". display keeps the entered casing;
// key is its lowercase form used for cache lookups.
func Sanitize(raw string) (display, key string) {
	display = strings.TrimSpace(raw)
	display = strings.TrimPrefix(display, "@")
	return display, strings.ToLower(display)
}
