package security

import "testing"

func TestNormalizeIdentity(t *testing.T) {
	if got := NormalizeIdentity("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestValidIdentityFormat(t *testing.T) {
	valid := []string{
		"alice@example.com",
		"first.last+tag@sub.example.org",
	}
	for _, identity := range valid {
		if !ValidIdentityFormat(identity) {
			t.Fatalf("expected %q to be valid", identity)
		}
	}

	invalid := []string{
		"",
		"no-at-sign",
		"two@@example.com",
		"@example.com",
		"alice@",
		"alice@nodot",
		"spaces in@example.com",
	}
	for _, identity := range invalid {
		if ValidIdentityFormat(identity) {
			t.Fatalf("expected %q to be invalid", identity)
		}
	}
}
