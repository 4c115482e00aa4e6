package domain

// FailureReason enumerates why an authentication attempt did not succeed.
// The set is closed; callers are expected to handle every value.
type FailureReason string

const (
	// FailureUserDoesNotExist indicates a well-formed identity with no matching account.
	FailureUserDoesNotExist FailureReason = "user_does_not_exist"
	// FailureInvalidIdentityFormat indicates the identity fails basic syntax validation.
	FailureInvalidIdentityFormat FailureReason = "invalid_identity_format"
	// FailureBadPassword indicates the secret did not match the stored hash.
	FailureBadPassword FailureReason = "bad_password"
	// FailureBadApiKey indicates the API key is absent, expired, or revoked.
	// The cases are deliberately undifferentiated to avoid an enumeration oracle.
	FailureBadApiKey FailureReason = "bad_api_key"
	// FailureComplexity indicates the secret matched but fails current login-time policy.
	FailureComplexity FailureReason = "complexity"
	// FailureExpired indicates the secret matched and policy passed, but the
	// password is past its expiration.
	FailureExpired FailureReason = "expired"
	// FailureThrottled indicates the attempt was paused by the login limiter.
	FailureThrottled FailureReason = "throttled"
	// FailureInactive is reserved for callers that map a disabled account to a
	// failure. Authenticate itself returns Success with Principal.Active false
	// and leaves the activeness decision to the caller.
	FailureInactive FailureReason = "inactive"
	// FailureConfigurationError indicates the credential store or a dependent
	// service failed or timed out.
	FailureConfigurationError FailureReason = "configuration_error"
)

// AuthenticationResult is the outcome of a single authentication attempt.
// It is constructed fresh per attempt and never cached or persisted.
//
// A successful result may still carry an inactive principal; callers must
// check Principal.Active before granting access. The redirect target is an
// opaque token the core produces but never interprets.
type AuthenticationResult struct {
	Principal           *Principal
	Reason              FailureReason
	RedirectTarget      string
	SecondaryAuthExempt bool
	Messages            []string
}

// Success builds a successful result for the supplied principal.
func Success(principal *Principal, redirectTarget string) AuthenticationResult {
	return AuthenticationResult{
		Principal:      principal,
		RedirectTarget: redirectTarget,
	}
}

// Failure builds a failed result with the supplied reason and optional
// human-readable messages for caller display.
func Failure(reason FailureReason, redirectTarget string, messages ...string) AuthenticationResult {
	return AuthenticationResult{
		Reason:         reason,
		RedirectTarget: redirectTarget,
		Messages:       messages,
	}
}

// Succeeded reports whether the attempt produced a principal.
func (r AuthenticationResult) Succeeded() bool {
	return r.Principal != nil && r.Reason == ""
}
