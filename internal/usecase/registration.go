package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/core/port"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/logger"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/security"
)

const (
	verificationTokenBytes = 32
	usernameMaxLength      = 60
	usernameSuffixLimit    = 1000
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]+$`)

// RegistrationService owns account creation. Every path that makes a user
// row, password signup and OAuth registration alike, funnels through
// ReallyCreateUser so the uniqueness and credential rules hold everywhere.
type RegistrationService struct {
	users     port.UserRepository
	creds     port.CredentialRepository
	emails    port.EmailRepository
	auths     port.AuthenticationRepository
	tx        port.Transactor
	publisher port.NotificationPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	users port.UserRepository,
	creds port.CredentialRepository,
	emails port.EmailRepository,
	auths port.AuthenticationRepository,
	tx port.Transactor,
	publisher port.NotificationPublisher,
	log *zap.Logger,
) *RegistrationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RegistrationService{
		users:     users,
		creds:     creds,
		emails:    emails,
		auths:     auths,
		tx:        tx,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *RegistrationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ReallyCreateUser is the single account-creation choke point. It enforces
// username shape, username and verified-email uniqueness, and password
// strength, then writes the user, credential, and email rows in one
// transaction. A pre-verified email becomes primary immediately; otherwise a
// verification token is minted and a verification mail is queued.
func (s *RegistrationService) ReallyCreateUser(ctx context.Context, input domain.NewUserInput) (*domain.User, error) {
	username := strings.TrimSpace(input.Username)
	if !usernamePattern.MatchString(username) || len(username) > usernameMaxLength {
		return nil, domain.NewError(domain.CodeModifiedData,
			"Username must start with a letter and contain only letters, numbers, underscores, and dashes")
	}

	address := strings.ToLower(strings.TrimSpace(input.Email))
	if address == "" {
		return nil, domain.NewError(domain.CodeModifiedData, "An email address is required")
	}

	if input.Password == "" && !input.EmailVerified {
		return nil, domain.NewError(domain.CodeModifiedData,
			"A password is required unless the email is already verified")
	}

	var passwordHash *string
	if input.Password != "" {
		if err := validatePassword(input.Password, username, address); err != nil {
			return nil, err
		}
		hash, err := security.HashPassword(input.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		passwordHash = &hash
	}

	role := input.Role
	if !role.Valid() {
		role = domain.RoleUser
	}

	now := s.now().UTC()
	user := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		Name:      input.Name,
		AvatarURL: input.AvatarURL,
		Role:      role,
		Verified:  input.EmailVerified,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var verificationToken *string
	var emailID string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		taken, err := s.users.UsernameExists(ctx, username)
		if err != nil {
			return fmt.Errorf("check username: %w", err)
		}
		if taken {
			return domain.NewError(domain.CodeTaken, "An account with that username has already been created")
		}

		if input.EmailVerified {
			exists, err := s.emails.VerifiedAddressExists(ctx, address)
			if err != nil {
				return fmt.Errorf("check email: %w", err)
			}
			if exists {
				return domain.NewError(domain.CodeTaken, "An account using that email address has already been created")
			}
		}

		if err := s.users.Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		if err := s.creds.Create(ctx, domain.UserSecret{UserID: user.ID, PasswordHash: passwordHash}); err != nil {
			return fmt.Errorf("create credentials: %w", err)
		}

		email := domain.UserEmail{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			Address:   address,
			Verified:  input.EmailVerified,
			Primary:   input.EmailVerified,
			CreatedAt: now,
		}
		emailID = email.ID

		if !input.EmailVerified {
			token, err := security.GenerateSecureToken(verificationTokenBytes)
			if err != nil {
				return fmt.Errorf("generate verification token: %w", err)
			}
			verificationToken = &token
		}
		if err := s.emails.Create(ctx, email, verificationToken); err != nil {
			return fmt.Errorf("create email: %w", err)
		}
		if verificationToken != nil {
			if err := s.emails.TouchVerificationSent(ctx, email.ID, now); err != nil {
				return fmt.Errorf("record verification send: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if verificationToken != nil && s.publisher != nil {
		event := domain.EmailVerificationEvent{
			UserID:      user.ID,
			EmailID:     emailID,
			Email:       address,
			MaskedEmail: logger.MaskEmail(address),
			Token:       *verificationToken,
			SentAt:      now,
		}
		if err := s.publisher.PublishEmailVerification(ctx, event); err != nil {
			s.logger.Warn("failed to publish verification mail",
				zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	s.logger.Info("user registered",
		zap.String("user_id", user.ID), zap.String("username", username))
	return &user, nil
}

// RegisterUser creates an account from an OAuth provider profile. The
// username is derived from the profile and disambiguated with the smallest
// free numeric suffix. The provider identity is linked in the same call.
func (s *RegistrationService) RegisterUser(
	ctx context.Context,
	service, identifier string,
	profile domain.ProviderProfile,
	authDetails map[string]any,
	emailVerified bool,
	role domain.Role,
) (*domain.User, error) {
	username, err := s.availableUsername(ctx, DeriveUsername(profile))
	if err != nil {
		return nil, err
	}

	user, err := s.ReallyCreateUser(ctx, domain.NewUserInput{
		Username:      username,
		Email:         profile.Email,
		EmailVerified: emailVerified,
		Name:          profile.Name,
		AvatarURL:     profile.AvatarURL,
		Role:          role,
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	auth := domain.UserAuthentication{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		Service:    service,
		Identifier: identifier,
		Details:    profileDetails(profile),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	secret := domain.UserAuthenticationSecret{AuthenticationID: auth.ID, Details: authDetails}
	if err := s.auths.Create(ctx, auth, secret); err != nil {
		return nil, fmt.Errorf("link provider identity: %w", err)
	}
	return user, nil
}

func (s *RegistrationService) availableUsername(ctx context.Context, base string) (string, error) {
	candidates := make([]string, 0, usernameSuffixLimit+2)
	candidates = append(candidates, base)
	for i := 0; i <= usernameSuffixLimit; i++ {
		candidates = append(candidates, base+strconv.Itoa(i))
	}
	for _, candidate := range candidates {
		taken, err := s.users.UsernameExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", domain.NewError(domain.CodeTaken, "Could not find a free username for this account")
}

// DeriveUsername produces a valid username candidate from a provider
// profile, preferring the provider username, then login, then display name.
func DeriveUsername(profile domain.ProviderProfile) string {
	for _, candidate := range []string{profile.Username, profile.Login, profile.Name} {
		if sanitized := sanitizeUsername(candidate); sanitized != "" {
			return sanitized
		}
	}
	return "user"
}

func sanitizeUsername(candidate string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(candidate) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	out := b.String()
	// Leading digits, underscores, and dashes cannot start a username.
	out = strings.TrimLeft(out, "0123456789_-")
	if len(out) > usernameMaxLength {
		out = out[:usernameMaxLength]
	}
	if !usernamePattern.MatchString(out) {
		return ""
	}
	return out
}

func profileDetails(profile domain.ProviderProfile) map[string]any {
	details := map[string]any{}
	if profile.Username != "" {
		details["username"] = profile.Username
	}
	if profile.Login != "" {
		details["login"] = profile.Login
	}
	if profile.Name != "" {
		details["name"] = profile.Name
	}
	if profile.Email != "" {
		details["email"] = profile.Email
	}
	if profile.AvatarURL != "" {
		details["avatar_url"] = profile.AvatarURL
	}
	return details
}
