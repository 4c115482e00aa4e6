package security

import (
	"strings"
	"testing"

	"github.com/arklim/platform-authn/internal/infra/config"
)

func TestHashAndVerify(t *testing.T) {
	h := DefaultHasher()

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	if !strings.HasPrefix(encoded, "argon2id$v=19$") {
		t.Fatalf("unexpected hash prefix: %s", encoded)
	}

	ok, err := h.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected matching password to verify")
	}

	ok, err = h.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected mismatched password to fail")
	}
}

func TestVerifyEmptyInputs(t *testing.T) {
	h := DefaultHasher()

	if ok, err := h.Verify("", "whatever"); err != nil || ok {
		t.Fatalf("empty password should fail cleanly, got ok=%v err=%v", ok, err)
	}
	if ok, err := h.Verify("password", ""); err != nil || ok {
		t.Fatalf("empty hash should fail cleanly, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := DefaultHasher()

	cases := []string{
		"not a hash",
		"argon2id$v=19$m=65536,t=3$short",
		"argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"argon2id$v=18$m=65536,t=3,p=4$c2FsdA$aGFzaA",
	}
	for _, encoded := range cases {
		if _, err := h.Verify("password", encoded); err == nil {
			t.Fatalf("expected error for malformed hash %q", encoded)
		}
	}
}

func TestVerifyAcrossParameterChange(t *testing.T) {
	old, err := NewHasher(config.Argon2Settings{
		Memory:      16 * 1024,
		Iterations:  1,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}

	encoded, err := old.Hash("migrating-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	// A hasher with different parameters still verifies the stored hash
	// because the hash embeds its own parameters.
	current := DefaultHasher()
	ok, err := current.Verify("migrating-password", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected hash written with old parameters to verify")
	}
}

func TestNewHasherRejectsWeakParams(t *testing.T) {
	_, err := NewHasher(config.Argon2Settings{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err == nil {
		t.Fatal("expected weak memory parameter to be rejected")
	}
}
