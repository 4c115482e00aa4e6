package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/platform-authn/internal/core/domain"
)

// PolicyTier selects the active password rule set. Each tier carries its own
// compiled pattern; evaluation dispatches on the tier value.
type PolicyTier string

const (
	// TierWeak requires 6+ non-whitespace characters distinct from the identity.
	TierWeak PolicyTier = "weak"
	// TierStrong requires 8+ non-whitespace characters, 3 of 4 character
	// classes, and no personal-information substrings.
	TierStrong PolicyTier = "strong"
)

// ParsePolicyTier maps a configuration string onto a tier.
func ParsePolicyTier(s string) (PolicyTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weak":
		return TierWeak, nil
	case "strong", "":
		return TierStrong, nil
	default:
		return "", fmt.Errorf("unknown password policy tier %q", s)
	}
}

var (
	weakPattern   = regexp.MustCompile(`^\S{6,}$`)
	strongPattern = regexp.MustCompile(`^\S{8,}$`)
)

const personalInfoSubstringLength = 3

// PasswordPolicy evaluates candidate passwords against the active tier.
// Login-time validation is cheap and history-free; store-time validation adds
// confirmation, reuse, and optional strength checks. Both predicates are pure
// apart from hashing during the reuse comparison.
type PasswordPolicy struct {
	tier             PolicyTier
	hasher           *Hasher
	minStrengthScore int
}

// NewPasswordPolicy builds a policy for the given tier. The hasher is used
// only for the store-time reuse check, which compares the candidate against
// prior hashes with the same hashing function used for storage.
func NewPasswordPolicy(tier PolicyTier, hasher *Hasher, minStrengthScore int) *PasswordPolicy {
	return &PasswordPolicy{
		tier:             tier,
		hasher:           hasher,
		minStrengthScore: minStrengthScore,
	}
}

// Tier returns the active tier.
func (p *PasswordPolicy) Tier() PolicyTier {
	return p.tier
}

// ValidForLogin reports whether the secret satisfies the tier's login-time
// rules. A false result always carries at least one human-readable message.
func (p *PasswordPolicy) ValidForLogin(secret string, principal *domain.Principal) (bool, []string) {
	var messages []string

	switch p.tier {
	case TierWeak:
		if !weakPattern.MatchString(secret) {
			messages = append(messages, "Your password must be at least six characters and cannot contain spaces.")
		}
		if principal != nil && strings.EqualFold(secret, principal.Identity) {
			messages = append(messages, "Your password must not match your email address.")
		}
	default:
		if !strongPattern.MatchString(secret) {
			messages = append(messages, "Your password must be at least eight characters and cannot contain spaces.")
		}
		if classes := characterClasses(secret); classes < 3 {
			messages = append(messages, "Your password must contain three of the following: lowercase letter, uppercase letter, digit, symbol.")
		}
		if principal != nil && containsPersonalInfo(secret, principal) {
			messages = append(messages, "Your password must not contain a sequence of three or more characters from your email address or name.")
		}
	}

	return len(messages) == 0, messages
}

// ValidToStore reports whether the secret may be persisted. It checks the
// confirmation, delegates to the login-time rules, and for the strong tier
// rejects reuse of any supplied prior hash. The prior hashes are an
// already-fetched bounded list; no store access happens here.
func (p *PasswordPolicy) ValidToStore(secret, confirmation string, principal *domain.Principal, priorHashes []string) (bool, []string, error) {
	if secret == "" || confirmation == "" {
		return false, []string{"You must enter a password."}, nil
	}
	if secret != confirmation {
		return false, []string{"Your password entries didn't match."}, nil
	}

	if ok, messages := p.ValidForLogin(secret, principal); !ok {
		return false, messages, nil
	}

	if p.tier == TierStrong {
		for _, prior := range priorHashes {
			match, err := p.hasher.Verify(secret, prior)
			if err != nil {
				return false, nil, fmt.Errorf("compare against password history: %w", err)
			}
			if match {
				return false, []string{"Your password must not match a recently used password."}, nil
			}
		}
	}

	if p.minStrengthScore > 0 {
		inputs := userInputs(principal)
		if result := zxcvbn.PasswordStrength(secret, inputs); result.Score < p.minStrengthScore {
			return false, []string{"Your password is too weak; choose a less guessable value."}, nil
		}
	}

	return true, nil, nil
}

func characterClasses(secret string) int {
	var hasUpper, hasLower, hasDigit, hasSymbol bool

	for _, r := range secret {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}

	classes := 0
	for _, has := range []bool{hasUpper, hasLower, hasDigit, hasSymbol} {
		if has {
			classes++
		}
	}
	return classes
}

// containsPersonalInfo reports whether the secret contains a contiguous
// case-insensitive run of three or more characters taken from the principal's
// identity, display name, or first+last name.
func containsPersonalInfo(secret string, principal *domain.Principal) bool {
	lowered := strings.ToLower(secret)

	sources := []string{
		principal.Identity,
		principal.DisplayName,
		principal.FirstName + principal.LastName,
	}
	for _, source := range sources {
		src := strings.ToLower(source)
		if len(src) < personalInfoSubstringLength {
			continue
		}
		for i := 0; i+personalInfoSubstringLength <= len(src); i++ {
			if strings.Contains(lowered, src[i:i+personalInfoSubstringLength]) {
				return true
			}
		}
	}

	return false
}

func userInputs(principal *domain.Principal) []string {
	if principal == nil {
		return nil
	}

	inputs := make([]string, 0, 4)
	for _, s := range []string{principal.Identity, principal.DisplayName, principal.FirstName, principal.LastName} {
		if s != "" {
			inputs = append(inputs, s)
		}
	}
	return inputs
}
