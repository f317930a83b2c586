package sql

import (
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on a user-supplied identifier.
type InjectionCheckResult struct {
	Field       string // Configuration field that failed the check
	Value       string // The value that was checked
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// CheckIdentifier uses libinjection to detect SQL injection patterns in a
// schema or object name before it reaches a catalog query or a remote payload.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	CheckIdentifier("schema_name", "CRM")              // nil
//	CheckIdentifier("schema_name", "x' OR '1'='1")     // Fingerprint "sos" (or similar)
func CheckIdentifier(field, value string) *InjectionCheckResult {
	if value == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Field:       field,
		Value:       value,
		Fingerprint: string(fingerprint),
	}
}

// CheckIdentifiers checks every value and returns the failures ordered by field name.
func CheckIdentifiers(values map[string]string) []*InjectionCheckResult {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var results []*InjectionCheckResult
	for _, f := range fields {
		if result := CheckIdentifier(f, values[f]); result != nil {
			results = append(results, result)
		}
	}
	return results
}
