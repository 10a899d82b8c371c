package utils

import "testing"

// Cost 4 is bcrypt's minimum; tests don't need interactive-login hardness.
const testCost = 4

func TestHashVerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("Secret1!", testCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Secret1!" {
		t.Fatal("hash equals plaintext")
	}
	if !VerifyPassword(hash, "Secret1!") {
		t.Fatal("correct password did not verify")
	}
	if VerifyPassword(hash, "Secret1?") {
		t.Fatal("wrong password verified")
	}
}

func TestHashIsSalted(t *testing.T) {
	h1, err := HashPassword("Secret1!", testCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("Secret1!", testCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password are identical; salt missing")
	}
}

func TestVerifyMalformedDigest(t *testing.T) {
	for _, digest := range []string{"", "not-a-bcrypt-hash", "$2a$"} {
		if VerifyPassword(digest, "anything") {
			t.Fatalf("malformed digest %q verified", digest)
		}
	}
}

func TestRandomHex(t *testing.T) {
	a, err := RandomHex(32)
	if err != nil {
		t.Fatalf("RandomHex: %v", err)
	}
	if len(a) != 64 {
		t.Fatalf("len = %d, want 64", len(a))
	}
	b, _ := RandomHex(32)
	if a == b {
		t.Fatal("two random tokens are identical")
	}
}
