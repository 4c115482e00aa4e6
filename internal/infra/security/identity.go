package security

import (
	"regexp"
	"strings"
)

// identityPattern accepts RFC-5322-ish addresses without being exhaustive.
// The goal is catching obvious typos, not full grammar validation.
var identityPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeIdentity canonicalizes a claimed identity for lookup: trimmed and
// lowercased. Identities are email addresses and compared case-insensitively.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// ValidIdentityFormat reports whether the identity has a plausible email
// shape. A false result signals a format problem distinct from an unknown
// account, so callers can hint the correct format to legitimate users.
func ValidIdentityFormat(identity string) bool {
	if identity == "" || len(identity) > 254 {
		return false
	}
	return identityPattern.MatchString(identity)
}
