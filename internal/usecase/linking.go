package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/core/port"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

// LinkingService attaches OAuth provider identities to accounts. The
// decision tree, in order: the identity is already linked; the caller is
// logged in; a verified local email matches the provider's; otherwise a
// fresh registration.
type LinkingService struct {
	users        port.UserRepository
	emails       port.EmailRepository
	auths        port.AuthenticationRepository
	registration *RegistrationService
	tx           port.Transactor
	publisher    port.NotificationPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewLinkingService constructs a LinkingService.
func NewLinkingService(
	users port.UserRepository,
	emails port.EmailRepository,
	auths port.AuthenticationRepository,
	registration *RegistrationService,
	tx port.Transactor,
	publisher port.NotificationPublisher,
	log *zap.Logger,
) *LinkingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkingService{
		users:        users,
		emails:       emails,
		auths:        auths,
		registration: registration,
		tx:           tx,
		publisher:    publisher,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *LinkingService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// LinkOrRegister resolves a provider identity to a local account, creating
// or linking as needed. currentUserID is the logged-in caller, if any.
// resolvedRole, when set, may only raise the account's role, never lower it.
// Attaching a provider to an account that already existed emits an audit
// notification; a fresh registration does not.
func (s *LinkingService) LinkOrRegister(
	ctx context.Context,
	currentUserID *string,
	service, identifier string,
	profile domain.ProviderProfile,
	authDetails map[string]any,
	resolvedRole *domain.Role,
) (*domain.User, error) {
	existing, err := s.auths.GetByServiceIdentifier(ctx, service, identifier)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup provider identity: %w", err)
	}

	if existing != nil {
		if currentUserID != nil && *currentUserID != existing.UserID {
			return nil, domain.NewError(domain.CodeTaken,
				"That account is already linked to a different user")
		}
		if err := s.auths.UpdateDetails(ctx, existing.ID, profileDetails(profile), authDetails); err != nil {
			return nil, fmt.Errorf("refresh provider details: %w", err)
		}
		return s.mergeProfile(ctx, existing.UserID, profile, resolvedRole)
	}

	if currentUserID != nil {
		user, err := s.attach(ctx, *currentUserID, service, identifier, profile, authDetails, resolvedRole)
		if err != nil {
			return nil, err
		}
		return user, nil
	}

	if profile.Email != "" {
		email, err := s.emails.FindVerified(ctx, profile.Email)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup verified email: %w", err)
		}
		if email != nil {
			user, err := s.attach(ctx, email.UserID, service, identifier, profile, authDetails, resolvedRole)
			if err != nil {
				return nil, err
			}
			return user, nil
		}
	}

	role := domain.RoleUser
	if resolvedRole != nil && resolvedRole.Outranks(role) {
		role = *resolvedRole
	}
	return s.registration.RegisterUser(ctx, service, identifier, profile, authDetails, true, role)
}

// attach links the provider identity to an existing account and notifies the
// account owner.
func (s *LinkingService) attach(
	ctx context.Context,
	userID, service, identifier string,
	profile domain.ProviderProfile,
	authDetails map[string]any,
	resolvedRole *domain.Role,
) (*domain.User, error) {
	now := s.now().UTC()
	auth := domain.UserAuthentication{
		ID:         uuid.NewString(),
		UserID:     userID,
		Service:    service,
		Identifier: identifier,
		Details:    profileDetails(profile),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	secret := domain.UserAuthenticationSecret{AuthenticationID: auth.ID, Details: authDetails}
	if err := s.auths.Create(ctx, auth, secret); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, domain.NewError(domain.CodeTaken,
				"That account is already linked to a different user")
		}
		return nil, fmt.Errorf("link provider identity: %w", err)
	}

	user, err := s.mergeProfile(ctx, userID, profile, resolvedRole)
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := domain.ProviderLinkedEvent{UserID: userID, Service: service, LinkedAt: now}
		if err := s.publisher.PublishProviderLinked(ctx, event); err != nil {
			s.logger.Warn("failed to publish provider-linked notification",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	s.logger.Info("provider linked",
		zap.String("user_id", userID), zap.String("service", service))
	return user, nil
}

// mergeProfile fills gaps in the local profile from fresh provider data and
// applies a role upgrade. Existing local values always win, and a role is
// never lowered.
func (s *LinkingService) mergeProfile(ctx context.Context, userID string, profile domain.ProviderProfile, resolvedRole *domain.Role) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch user: %w", err)
	}

	changed := false
	if user.Name == "" && profile.Name != "" {
		user.Name = profile.Name
		changed = true
	}
	if user.AvatarURL == "" && profile.AvatarURL != "" {
		user.AvatarURL = profile.AvatarURL
		changed = true
	}
	if resolvedRole != nil && resolvedRole.Outranks(user.Role) {
		user.Role = *resolvedRole
		changed = true
	}
	if changed {
		user.UpdatedAt = s.now().UTC()
		if err := s.users.Update(ctx, *user); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	return user, nil
}

// LinkedProviders lists the provider identities attached to an account.
func (s *LinkingService) LinkedProviders(ctx context.Context, userID string) ([]domain.UserAuthentication, error) {
	auths, err := s.auths.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list provider identities: %w", err)
	}
	return auths, nil
}
