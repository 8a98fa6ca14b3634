// Package safety decides whether a generated statement may run against the
// warehouse database. It is a lexical gate, not a parser.
package safety

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnsafeQuery is returned by Check when a statement is rejected.
var ErrUnsafeQuery = errors.New("unsafe query rejected")

// BlockedVerbs are the data/schema mutating keywords that always reject.
var BlockedVerbs = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE",
	"ALTER", "CREATE", "REPLACE", "GRANT", "REVOKE",
}

var writePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(BlockedVerbs, "|") + `)\b`)

// IsSafe reports whether sql contains no blocked verb as a whole word and
// starts with SELECT after trimming.
func IsSafe(sql string) bool {
	if writePattern.MatchString(sql) {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sql)), "SELECT")
}

// Check returns ErrUnsafeQuery when IsSafe rejects sql.
func Check(sql string) error {
	if !IsSafe(sql) {
		return ErrUnsafeQuery
	}
	return nil
}
