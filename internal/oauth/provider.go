package oauth

import (
	"context"
	"errors"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
)

var (
	// ErrBadCode means the provider rejected the authorization code. This is
	// the user retrying a stale callback, not an infrastructure failure.
	ErrBadCode = errors.New("oauth: authorization code rejected")

	// ErrNoVerifiedEmail means no usable email could be resolved from the
	// provider for an anonymous registration.
	ErrNoVerifiedEmail = errors.New("oauth: no verified email available")
)

// TokenSet is the credential material returned by a code exchange. It is
// stored in the authentication secret row, never exposed.
type TokenSet struct {
	AccessToken string
	TokenType   string
	Scope       string
}

// ProviderEmail is one address from the provider's email listing.
type ProviderEmail struct {
	Address  string
	Verified bool
	Primary  bool
}

// Identity is the resolved provider identity handed to linking and to role
// resolution.
type Identity struct {
	Service    string
	Identifier string
	Profile    domain.ProviderProfile
	Token      TokenSet
}

// Provider abstracts one OAuth upstream.
type Provider interface {
	Name() string
	// AuthorizeURL builds the redirect that starts the flow.
	AuthorizeURL(state string) string
	// Exchange trades an authorization code for tokens. A rejected code
	// returns ErrBadCode.
	Exchange(ctx context.Context, code string) (*TokenSet, error)
	// FetchProfile resolves the provider's stable identifier and profile.
	FetchProfile(ctx context.Context, token *TokenSet) (string, domain.ProviderProfile, error)
	// FetchEmails lists the provider-side addresses, used when the public
	// profile carries no email.
	FetchEmails(ctx context.Context, token *TokenSet) ([]ProviderEmail, error)
}

// RoleResolver derives a role from provider trust signals. Returning
// (nil, false) means no signal; a resolver must never be used to lower a
// stored role, only the linking layer decides, and it only raises.
type RoleResolver interface {
	Resolve(ctx context.Context, identity Identity) (*domain.Role, bool)
}

// NopRoleResolver never yields a role signal.
type NopRoleResolver struct{}

// Resolve implements RoleResolver.
func (NopRoleResolver) Resolve(context.Context, Identity) (*domain.Role, bool) {
	return nil, false
}

// ResolveEmail picks the registration address from the provider data:
// the public profile email first, then the primary verified address, then
// any verified address.
func ResolveEmail(profile domain.ProviderProfile, emails []ProviderEmail) (string, error) {
	if profile.Email != "" {
		return profile.Email, nil
	}
	for _, email := range emails {
		if email.Primary && email.Verified {
			return email.Address, nil
		}
	}
	for _, email := range emails {
		if email.Verified {
			return email.Address, nil
		}
	}
	return "", ErrNoVerifiedEmail
}
