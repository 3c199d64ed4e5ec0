package crypto

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Secret1!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if hash == "Secret1!" {
		t.Fatal("hash must not equal the plaintext")
	}
	if !VerifyPassword(hash, "Secret1!") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hash, "wrong") {
		t.Fatal("expected wrong password to fail verification")
	}
}

func TestGenerateTokenLengthAndUniqueness(t *testing.T) {
	a, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	b, err := GenerateToken(32)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if a == b {
		t.Fatal("expected two random tokens to differ")
	}
}

func TestGenerateTempPassword(t *testing.T) {
	pw, err := GenerateTempPassword(8)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(pw) != 8 {
		t.Fatalf("expected 8 characters, got %d", len(pw))
	}
	for _, r := range pw {
		if !strings.ContainsRune(tempPasswordAlphabet, r) {
			t.Fatalf("unexpected character %q", r)
		}
	}
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(code) != 6 {
		t.Fatalf("expected 6 digits, got %d (%s)", len(code), code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("expected only digits, got %q", code)
		}
	}
}
