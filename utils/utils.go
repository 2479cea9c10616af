package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"runtime"
	"strings"
)

func ErrorWithTrace(e error) error {
	_, file, line, _ := runtime.Caller(1)
	return fmt.Errorf("%s:%d\n\t%w", file, line, e)
}

var unsafeNameChars = regexp.MustCompile(`[^\w\s-]`)

// SafeName turns a player name into something usable as a file name:
// punctuation is dropped and runs of whitespace become single underscores.
func SafeName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(cleaned), "_")
}

func IsURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
