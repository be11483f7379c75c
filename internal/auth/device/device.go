// Package device derives human-readable device display names from User-Agent
// strings for the login audit log.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent returns a display name like "Chrome on Mac OS X" for a raw
// User-Agent header. Unknown or empty agents become "Unknown Device".
func ParseUserAgent(rawUA string) string {
	if rawUA == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	if ua.Mobile() && ua.Platform() != "" {
		os = ua.Platform()
	}

	if browser == "" {
		browser = firstToken(rawUA)
	}
	if os == "" {
		os = "Unknown OS"
	}
	return browser + " on " + os
}

func firstToken(rawUA string) string {
	token := rawUA
	if i := strings.IndexAny(token, "/ "); i > 0 {
		token = token[:i]
	}
	if token == "" {
		return "Unknown Browser"
	}
	return token
}
