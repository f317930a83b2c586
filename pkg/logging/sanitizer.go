package logging

import (
	"regexp"
)

const (
	// MaxBodyLogLength is the maximum length of a remote response body to log
	MaxBodyLogLength = 512
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Matches JSON password members: "password":"xxx"
	jsonPasswordPattern = regexp.MustCompile(`(?i)("password"\s*:\s*)"(?:[^"\\]|\\.)*"`)

	// Matches the compliance engine session token header
	authHeaderPattern = regexp.MustCompile(`(?i)(authorization["']?\s*[:=]\s*["']?)[^\s"',}]+`)

	// Matches URL credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// Matches Oracle easy-connect credentials (user/pass@host)
	easyConnectPattern = regexp.MustCompile(`\b[A-Za-z0-9_$#]+/[^@\s/]+@[A-Za-z0-9._-]+`)

	// Matches MySQL driver DSN credentials (user:pass@tcp(host))
	mysqlDSNPattern = regexp.MustCompile(`[^:\s/]+:[^@\s]+@tcp\(`)
)

// SanitizeConnectionString removes sensitive data from connection strings and DSNs.
// Use this before logging any connection string
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = easyConnectPattern.ReplaceAllString(sanitized, RedactedText+"@"+RedactedText)
	sanitized = mysqlDSNPattern.ReplaceAllString(sanitized, RedactedText+"@tcp(")

	return sanitized
}

// SanitizeError sanitizes error messages that might contain credentials.
// Database drivers and HTTP clients both echo DSNs and headers into errors.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText redacts every known secret pattern from free text such as response bodies.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}

	sanitized := jsonPasswordPattern.ReplaceAllString(s, `${1}"`+RedactedText+`"`)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = authHeaderPattern.ReplaceAllString(sanitized, "${1}"+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	sanitized = easyConnectPattern.ReplaceAllString(sanitized, RedactedText+"@"+RedactedText)
	sanitized = mysqlDSNPattern.ReplaceAllString(sanitized, RedactedText+"@tcp(")

	return sanitized
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
