package services

import (
	"strings"

	"github.com/mileusna/useragent"
)

// ExtractDeviceInfo turns a User-Agent header into a short description such
// as "Chrome 120.0.0.0 · Windows 10 · Desktop" for request logs.
// Returns "Unknown Device" for an empty header.
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	var parts []string

	if ua.Name != "" {
		browser := ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
		parts = append(parts, browser)
	}

	if ua.OS != "" {
		os := ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
		parts = append(parts, os)
	}

	switch {
	case ua.Mobile:
		parts = append(parts, "Mobile")
	case ua.Tablet:
		parts = append(parts, "Tablet")
	case ua.Desktop:
		parts = append(parts, "Desktop")
	}

	if len(parts) == 0 {
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}

	return strings.Join(parts, " · ")
}
