package security

import "testing"

func TestGenerateSecureToken(t *testing.T) {
	a, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	b, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	if a == b {
		t.Fatalf("two generated tokens must differ")
	}
	if len(a) == 0 {
		t.Fatalf("expected a non-empty token")
	}

	if _, err := GenerateSecureToken(0); err == nil {
		t.Fatalf("expected error for non-positive byte length")
	}
}

func TestTokenMatches(t *testing.T) {
	raw, err := GenerateSecureToken(32)
	if err != nil {
		t.Fatalf("GenerateSecureToken returned error: %v", err)
	}
	stored := HashToken(raw)

	if !TokenMatches(raw, stored) {
		t.Fatalf("token must match its own hash")
	}
	if TokenMatches("other", stored) {
		t.Fatalf("a different token must not match")
	}
	if TokenMatches("", stored) {
		t.Fatalf("an empty token must not match")
	}
}

func TestTokensEqual(t *testing.T) {
	if !TokensEqual("abc", "abc") {
		t.Fatalf("identical tokens must compare equal")
	}
	if TokensEqual("abc", "abd") {
		t.Fatalf("different tokens must not compare equal")
	}
	if TokensEqual("", "") {
		t.Fatalf("empty tokens must never compare equal")
	}
}
