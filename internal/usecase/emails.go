package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/core/port"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/logger"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/security"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

// EmailService manages a user's addresses: adding, verifying, promoting to
// primary, and deleting. Every user keeps at least one address at all times.
type EmailService struct {
	users     port.UserRepository
	emails    port.EmailRepository
	tx        port.Transactor
	publisher port.NotificationPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEmailService constructs an EmailService.
func NewEmailService(
	users port.UserRepository,
	emails port.EmailRepository,
	tx port.Transactor,
	publisher port.NotificationPublisher,
	log *zap.Logger,
) *EmailService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailService{
		users:     users,
		emails:    emails,
		tx:        tx,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *EmailService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ListEmails returns the user's addresses.
func (s *EmailService) ListEmails(ctx context.Context, userID string) ([]domain.UserEmail, error) {
	return s.emails.ListByUser(ctx, userID)
}

// AddEmail attaches an unverified address to the account and queues a
// verification mail. Uniqueness is not enforced until verification so an
// attacker cannot squat an address to learn whether an account holds it.
func (s *EmailService) AddEmail(ctx context.Context, userID, address string) (*domain.UserEmail, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" || !strings.Contains(address, "@") {
		return nil, domain.NewError(domain.CodeModifiedData, "A valid email address is required")
	}

	existing, err := s.emails.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	for _, e := range existing {
		if e.Address == address {
			return nil, domain.NewError(domain.CodeTaken, "That email address is already attached to your account")
		}
	}

	token, err := security.GenerateSecureToken(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	now := s.now().UTC()
	email := domain.UserEmail{
		ID:        uuid.NewString(),
		UserID:    userID,
		Address:   address,
		CreatedAt: now,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.emails.Create(ctx, email, &token); err != nil {
			return fmt.Errorf("create email: %w", err)
		}
		if err := s.emails.TouchVerificationSent(ctx, email.ID, now); err != nil {
			return fmt.Errorf("record verification send: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := domain.EmailVerificationEvent{
			UserID:      userID,
			EmailID:     email.ID,
			Email:       address,
			MaskedEmail: logger.MaskEmail(address),
			Token:       token,
			SentAt:      now,
		}
		if err := s.publisher.PublishEmailVerification(ctx, event); err != nil {
			s.logger.Warn("failed to publish verification mail",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	return &email, nil
}

// VerifyEmail redeems a verification token. The first address a user
// verifies is promoted to primary, and the account's verified flag flips on.
// Returns false when the token is wrong or the address is unknown.
func (s *EmailService) VerifyEmail(ctx context.Context, emailID, token string) (bool, error) {
	email, err := s.emails.GetByID(ctx, emailID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetch email: %w", err)
	}
	if email.Verified {
		return false, domain.NewError(domain.CodeAlreadyVerified, "That email address has already been verified")
	}

	secret, err := s.emails.GetSecret(ctx, emailID)
	if err != nil {
		return false, fmt.Errorf("fetch email secret: %w", err)
	}
	if secret.VerificationToken == nil || !security.TokensEqual(token, *secret.VerificationToken) {
		return false, nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.emails.MarkVerified(ctx, emailID); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}

		siblings, err := s.emails.ListByUser(ctx, email.UserID)
		if err != nil {
			return fmt.Errorf("list emails: %w", err)
		}
		hasPrimary := false
		for _, sibling := range siblings {
			if sibling.Primary {
				hasPrimary = true
				break
			}
		}
		if !hasPrimary {
			if err := s.emails.SetPrimary(ctx, email.UserID, emailID); err != nil {
				return fmt.Errorf("promote primary: %w", err)
			}
		}

		user, err := s.users.GetByID(ctx, email.UserID)
		if err != nil {
			return fmt.Errorf("fetch user: %w", err)
		}
		if !user.Verified {
			if err := s.users.SetVerified(ctx, email.UserID, true); err != nil {
				return fmt.Errorf("flag user verified: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.Info("email verified",
		zap.String("user_id", email.UserID),
		zap.String("email", logger.MaskEmail(email.Address)))
	return true, nil
}

// MakeEmailPrimary promotes a verified address to primary, demoting the
// previous one in the same transaction.
func (s *EmailService) MakeEmailPrimary(ctx context.Context, userID, emailID string) error {
	email, err := s.emails.GetByID(ctx, emailID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewError(domain.CodeNotFound, "That email address was not found")
		}
		return fmt.Errorf("fetch email: %w", err)
	}
	if email.UserID != userID {
		return domain.NewError(domain.CodeNotOwner, "That email address does not belong to you")
	}
	if !email.Verified {
		return domain.NewError(domain.CodeUnverifiedEmail,
			"You may only make a verified email address your primary email")
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.emails.SetPrimary(ctx, userID, emailID); err != nil {
			return fmt.Errorf("promote primary: %w", err)
		}
		return nil
	})
}

// DeleteEmail removes an address. The row lock plus the post-delete count
// close the race where two concurrent deletions would strip the account of
// its last address.
func (s *EmailService) DeleteEmail(ctx context.Context, userID, emailID string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		email, err := s.emails.GetForUpdate(ctx, emailID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.NewError(domain.CodeNotFound, "That email address was not found")
			}
			return fmt.Errorf("fetch email: %w", err)
		}
		if email.UserID != userID {
			return domain.NewError(domain.CodeNotOwner, "That email address does not belong to you")
		}

		if err := s.emails.Delete(ctx, emailID); err != nil {
			return fmt.Errorf("delete email: %w", err)
		}

		remaining, err := s.emails.CountRemaining(ctx, userID)
		if err != nil {
			return fmt.Errorf("count remaining emails: %w", err)
		}
		if remaining == 0 {
			return domain.NewError(domain.CodeLastEmail,
				"You cannot delete your last email address")
		}
		return nil
	})
}
