package validation

import (
	"net/url"
	"regexp"
	"strings"
)

// TagPattern defines the valid background sync tag format: alphanumeric, hyphens, underscores.
var TagPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateTag checks if a sync or notification tag matches the allowed pattern.
func ValidateTag(tag string) bool {
	if tag == "" || len(tag) > 100 {
		return false
	}
	return TagPattern.MatchString(tag)
}

// ValidateURL checks if a URL is valid and uses an allowed scheme (http/https only).
// This prevents javascript:, data:, vbscript:, and other dangerous URL schemes.
func ValidateURL(urlStr string) (bool, string) {
	if urlStr == "" {
		return false, "URL is required"
	}

	// Parse the URL
	u, err := url.Parse(urlStr)
	if err != nil {
		return false, "Invalid URL format"
	}

	// Check scheme - only allow http and https
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false, "URL must use http:// or https:// scheme"
	}

	// Ensure host is present
	if u.Host == "" {
		return false, "URL must have a valid host"
	}

	return true, ""
}

// ValidateTargetPath checks that a notification target stays on the origin:
// an absolute path with no scheme, host or protocol-relative prefix.
func ValidateTargetPath(target string) (bool, string) {
	if target == "" {
		return false, "target is required"
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, `/\`) {
		return false, "target must be a path on this site"
	}

	u, err := url.Parse(target)
	if err != nil {
		return false, "Invalid target format"
	}
	if u.Scheme != "" || u.Host != "" {
		return false, "target must be a path on this site"
	}
	return true, ""
}

// ValidatePrecacheEntry accepts origin paths and absolute http(s) URLs.
func ValidatePrecacheEntry(entry string) (bool, string) {
	if strings.HasPrefix(entry, "/") && !strings.HasPrefix(entry, "//") {
		return true, ""
	}
	return ValidateURL(entry)
}
