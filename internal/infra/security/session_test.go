package security

import (
	"testing"
	"time"
)

func TestSessionIssueAndVerify(t *testing.T) {
	signer, err := NewSessionSigner("test-secret-at-least-32-bytes-long", "authn-test", time.Minute)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	raw, err := signer.Issue("principal-1", "alice@example.com", true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := signer.Verify(raw)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "principal-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Identity != "alice@example.com" {
		t.Fatalf("unexpected identity %q", claims.Identity)
	}
	if !claims.SiteAdmin {
		t.Fatal("expected site admin claim")
	}
}

func TestSessionRejectsForeignSignature(t *testing.T) {
	a, _ := NewSessionSigner("secret-a-secret-a-secret-a-secret", "authn-test", time.Minute)
	b, _ := NewSessionSigner("secret-b-secret-b-secret-b-secret", "authn-test", time.Minute)

	raw, err := a.Issue("principal-1", "alice@example.com", false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := b.Verify(raw); err == nil {
		t.Fatal("expected foreign signature to be rejected")
	}
}

func TestSessionRejectsExpired(t *testing.T) {
	signer, _ := NewSessionSigner("test-secret-at-least-32-bytes-long", "authn-test", time.Minute)
	signer.ttl = -time.Minute

	raw, err := signer.Issue("principal-1", "alice@example.com", false)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := signer.Verify(raw); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestSessionRequiresSecret(t *testing.T) {
	if _, err := NewSessionSigner("", "authn-test", time.Minute); err == nil {
		t.Fatal("expected missing secret to be rejected")
	}
}
