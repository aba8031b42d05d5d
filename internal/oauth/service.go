package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/usecase"
)

// ErrUnknownProvider means the request named a provider this deployment does
// not configure.
var ErrUnknownProvider = errors.New("oauth: unknown provider")

// Service drives the OAuth flow end to end: state issuance, code exchange,
// profile and email resolution, linking, and session issuance.
type Service struct {
	providers map[string]Provider
	linking   *usecase.LinkingService
	sessions  *usecase.SessionService
	roles     RoleResolver
	state     *StateCodec
	logger    *zap.Logger
}

// NewService constructs the OAuth service. roles may be nil, in which case no
// role signal is ever derived.
func NewService(
	providers []Provider,
	linking *usecase.LinkingService,
	sessions *usecase.SessionService,
	roles RoleResolver,
	state *StateCodec,
	log *zap.Logger,
) *Service {
	if roles == nil {
		roles = NopRoleResolver{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		providers: byName,
		linking:   linking,
		sessions:  sessions,
		roles:     roles,
		state:     state,
		logger:    log,
	}
}

// Begin returns the provider redirect that starts the flow.
func (s *Service) Begin(providerName, redirectTo string) (string, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}
	state, err := s.state.Encode(redirectTo)
	if err != nil {
		return "", err
	}
	return provider.AuthorizeURL(state), nil
}

// CallbackResult is the outcome of a completed OAuth callback. Session is
// set only when the caller arrived without one.
type CallbackResult struct {
	User       *domain.User
	Session    *domain.IssuedSession
	RedirectTo string
}

// Callback completes the flow: verifies state, exchanges the code, resolves
// the provider identity, links or registers, and issues a session when the
// caller had none.
func (s *Service) Callback(ctx context.Context, providerName, code, state string, current *domain.CachedSession) (*CallbackResult, error) {
	provider, ok := s.providers[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	redirectTo, err := s.state.Decode(state)
	if err != nil {
		return nil, err
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	identifier, profile, err := provider.FetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch provider profile: %w", err)
	}

	if profile.Email == "" {
		emails, err := provider.FetchEmails(ctx, token)
		if err != nil {
			s.logger.Warn("failed to list provider emails",
				zap.String("provider", providerName), zap.Error(err))
		}
		address, err := ResolveEmail(profile, emails)
		switch {
		case err == nil:
			profile.Email = address
		case current == nil:
			// An anonymous caller may need a fresh registration, and that
			// requires a verified address.
			return nil, err
		}
	}

	identity := Identity{
		Service:    provider.Name(),
		Identifier: identifier,
		Profile:    profile,
		Token:      *token,
	}

	var resolvedRole *domain.Role
	if role, ok := s.roles.Resolve(ctx, identity); ok {
		resolvedRole = role
	}

	var currentUserID *string
	if current != nil {
		currentUserID = &current.UserID
	}

	authDetails := map[string]any{
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"scope":        token.Scope,
		"fetched_at":   time.Now().UTC().Format(time.RFC3339),
	}

	user, err := s.linking.LinkOrRegister(ctx, currentUserID, identity.Service, identity.Identifier, profile, authDetails, resolvedRole)
	if err != nil {
		return nil, err
	}

	result := &CallbackResult{User: user, RedirectTo: redirectTo}
	if current == nil {
		session, err := s.sessions.Create(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		result.Session = session
	}
	return result, nil
}

// Providers lists the configured provider names.
func (s *Service) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}
