package oauth

import (
	"errors"
	"testing"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

func TestResolveEmail(t *testing.T) {
	listing := []ProviderEmail{
		{Address: "unverified@example.com"},
		{Address: "secondary@example.com", Verified: true},
		{Address: "primary@example.com", Verified: true, Primary: true},
	}

	got, err := ResolveEmail(domain.ProviderProfile{Email: "public@example.com"}, listing)
	if err != nil || got != "public@example.com" {
		t.Fatalf("the public profile email wins, got (%q, %v)", got, err)
	}

	got, err = ResolveEmail(domain.ProviderProfile{}, listing)
	if err != nil || got != "primary@example.com" {
		t.Fatalf("the primary verified address is next, got (%q, %v)", got, err)
	}

	got, err = ResolveEmail(domain.ProviderProfile{}, listing[:2])
	if err != nil || got != "secondary@example.com" {
		t.Fatalf("any verified address serves as fallback, got (%q, %v)", got, err)
	}

	_, err = ResolveEmail(domain.ProviderProfile{}, listing[:1])
	if !errors.Is(err, ErrNoVerifiedEmail) {
		t.Fatalf("expected ErrNoVerifiedEmail, got %v", err)
	}

	_, err = ResolveEmail(domain.ProviderProfile{}, nil)
	if !errors.Is(err, ErrNoVerifiedEmail) {
		t.Fatalf("expected ErrNoVerifiedEmail for an empty listing, got %v", err)
	}
}
