package oauth

import (
	"errors"
	"testing"
	"time"
)

func TestStateCodecRoundtrip(t *testing.T) {
	codec := NewStateCodec("state-secret")

	token, err := codec.Encode("/gardens/abc")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	redirectTo, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if redirectTo != "/gardens/abc" {
		t.Fatalf("expected the redirect target back, got %q", redirectTo)
	}
}

func TestStateCodecRejectsTampering(t *testing.T) {
	codec := NewStateCodec("state-secret")

	token, err := codec.Encode("/")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	if _, err := codec.Decode(token + "x"); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState for a mangled token, got %v", err)
	}

	other := NewStateCodec("different-secret")
	if _, err := other.Decode(token); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState under a different secret, got %v", err)
	}

	if _, err := codec.Decode("not-a-jwt"); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState for garbage, got %v", err)
	}
}

func TestStateCodecExpiry(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	codec := NewStateCodec("state-secret")
	codec.WithClock(func() time.Time { return now })

	token, err := codec.Encode("/settings")
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	now = now.Add(10 * time.Minute)
	if _, err := codec.Decode(token); err != nil {
		t.Fatalf("a token inside its lifetime must decode, got %v", err)
	}

	now = now.Add(10 * time.Minute)
	if _, err := codec.Decode(token); !errors.Is(err, ErrBadState) {
		t.Fatalf("expected ErrBadState after expiry, got %v", err)
	}
}

func TestSanitizeRedirect(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/gardens/abc?tab=schema", "/gardens/abc?tab=schema"},
		{"https://evil.example.com", "/"},
		{"//evil.example.com", "/"},
		{"gardens/abc", "/"},
	}
	for _, tc := range cases {
		if got := sanitizeRedirect(tc.in); got != tc.want {
			t.Errorf("sanitizeRedirect(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
