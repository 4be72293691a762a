package mockapi

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// deviceName renders a User-Agent as "Browser on OS", e.g. "Chrome on macOS".
func deviceName(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := normalizeOS(ua.OS())

	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return unknownDevice
	}
}

func normalizeOS(os string) string {
	switch {
	case strings.Contains(os, "iPhone"), strings.Contains(os, "iPad"), strings.HasPrefix(os, "CPU OS"):
		return "iOS"
	case strings.Contains(os, "Mac OS X"):
		return "macOS"
	case strings.HasPrefix(os, "Windows"):
		return "Windows"
	case strings.Contains(os, "Android"):
		return "Android"
	case strings.Contains(os, "Linux"):
		return "Linux"
	default:
		return strings.TrimSpace(os)
	}
}
