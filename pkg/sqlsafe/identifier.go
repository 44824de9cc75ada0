// Package sqlsafe guards the identifiers this engine interpolates into
// discovery and sampling SQL. Schema and table names come back from the
// source's own catalog, but they still pass through an injection check before
// being quoted into a statement, since a hostile source could report
// adversarial object names.
package sqlsafe

import (
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// identifierPattern matches identifiers we accept without quoting concerns:
// letters, digits, underscore, dollar (snowflake allows $), not starting
// with a digit.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// InjectionCheckResult contains the result of an injection check on an identifier.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Identifier  string // The value that was checked
}

// CheckIdentifier uses libinjection to detect SQL injection patterns in a
// schema or table name before it is interpolated into a statement.
// Returns nil if the identifier is clean.
func CheckIdentifier(identifier string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(identifier)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: fingerprint,
			Identifier:  identifier,
		}
	}
	return nil
}

// ValidateIdentifier rejects identifiers that either trip the injection check
// or contain quote characters that would escape the quoting applied later.
func ValidateIdentifier(identifier string) error {
	if identifier == "" {
		return fmt.Errorf("empty identifier")
	}
	if strings.ContainsAny(identifier, "\"'`\x00") {
		return fmt.Errorf("identifier %q contains quote characters", identifier)
	}
	if result := CheckIdentifier(identifier); result != nil {
		return fmt.Errorf("identifier %q failed injection check (fingerprint %s)", identifier, result.Fingerprint)
	}
	return nil
}

// QuoteIdentifier wraps an identifier in ANSI double quotes, doubling any
// embedded quotes. Valid for postgres and snowflake; SQL Server uses brackets
// via QuoteBracket.
func QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// QuoteBracket wraps an identifier in SQL Server brackets.
func QuoteBracket(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// IsPlainIdentifier reports whether the identifier needs no quoting at all.
func IsPlainIdentifier(identifier string) bool {
	return identifierPattern.MatchString(identifier)
}
