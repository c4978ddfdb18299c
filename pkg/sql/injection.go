package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a string literal that libinjection flagged.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Value       string // The literal that was checked
}

// CheckLiteralForInjection runs libinjection over the contents of one string literal.
// Whole predicates are not screened: "a = 1 OR b = 2" is a legitimate CHECK.
//
// Returns nil if no injection is detected.
//
// Example:
//
//	CheckLiteralForInjection("pending")              // nil
//	CheckLiteralForInjection("x' OR '1'='1")         // IsSQLi == true
func CheckLiteralForInjection(value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Value:       value,
	}
}
