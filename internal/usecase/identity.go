package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/core/port"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/logger"
	"github.com/DanielFGray/postgres.garden-sub001/internal/infra/security"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

const resetTokenBytes = 32

// LoginStatus classifies the outcome of a login attempt. Bad credentials and
// lockout are expected results of the operation, not errors.
type LoginStatus int

const (
	LoginSuccess LoginStatus = iota
	LoginInvalid
	LoginLocked
)

// LoginOutcome is the result of a login attempt. User is set only on success.
type LoginOutcome struct {
	Status LoginStatus
	User   *domain.User
}

// IdentityService implements login, logout, and the password lifecycle:
// forgot, reset, change, and account deletion.
type IdentityService struct {
	users        port.UserRepository
	credentials  port.CredentialRepository
	emails       port.EmailRepository
	unregistered port.UnregisteredResetRepository
	tx           port.Transactor
	sessions     *SessionService
	publisher    port.NotificationPublisher
	logger       *zap.Logger
	now          func() time.Time
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(
	users port.UserRepository,
	credentials port.CredentialRepository,
	emails port.EmailRepository,
	unregistered port.UnregisteredResetRepository,
	tx port.Transactor,
	sessions *SessionService,
	publisher port.NotificationPublisher,
	log *zap.Logger,
) *IdentityService {
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityService{
		users:        users,
		credentials:  credentials,
		emails:       emails,
		unregistered: unregistered,
		tx:           tx,
		sessions:     sessions,
		publisher:    publisher,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *IdentityService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login verifies a username-or-email identifier and password. Failed-attempt
// bookkeeping commits in its own transaction so it survives regardless of
// what the caller does next. While the lockout window is active the password
// is not checked and the counter is left untouched.
func (s *IdentityService) Login(ctx context.Context, identifier, password string) (LoginOutcome, error) {
	user, err := s.resolveLoginUser(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return LoginOutcome{Status: LoginInvalid}, nil
		}
		return LoginOutcome{}, err
	}

	outcome := LoginOutcome{Status: LoginInvalid}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		secret, err := s.credentials.GetForUpdate(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("fetch credentials: %w", err)
		}

		now := s.now().UTC()
		if secret.LoginLocked(now) {
			outcome = LoginOutcome{Status: LoginLocked}
			return nil
		}

		var stored string
		if secret.PasswordHash != nil {
			stored = *secret.PasswordHash
		}
		ok, err := security.VerifyPassword(password, stored)
		if err != nil {
			return fmt.Errorf("verify password: %w", err)
		}
		if !ok {
			count, anchor := secret.NextLoginFailure(now)
			if err := s.credentials.RecordLoginFailure(ctx, user.ID, count, anchor); err != nil {
				return fmt.Errorf("record login failure: %w", err)
			}
			if count >= domain.LoginLockoutThreshold {
				s.logger.Warn("account locked after repeated login failures",
					zap.String("user_id", user.ID), zap.Int("failed_attempts", count))
			}
			return nil
		}

		if err := s.credentials.RecordLoginSuccess(ctx, user.ID, now); err != nil {
			return fmt.Errorf("record login success: %w", err)
		}
		outcome = LoginOutcome{Status: LoginSuccess, User: user}
		return nil
	})
	if err != nil {
		return LoginOutcome{}, err
	}
	return outcome, nil
}

// Logout revokes the session. Absent sessions are treated as success.
func (s *IdentityService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// ForgotPassword handles a reset request for any address. It succeeds
// silently whether or not an account exists; per-address and unknown-address
// rate limits bound how often mail actually goes out. An unexpired reset
// token is reused so every email in the window carries the same link.
func (s *IdentityService) ForgotPassword(ctx context.Context, address string) error {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return nil
	}

	email, err := s.emails.ResolveReset(ctx, address)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return s.recordUnknownAddress(ctx, address)
		}
		return fmt.Errorf("resolve reset address: %w", err)
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		secret, err := s.credentials.GetForUpdate(ctx, email.UserID)
		if err != nil {
			return fmt.Errorf("fetch credentials: %w", err)
		}

		now := s.now().UTC()
		var token string
		var expiresAt time.Time
		if secret.ResetTokenValid(now) {
			token = *secret.ResetPasswordToken
			expiresAt = secret.ResetPasswordSetAt.Add(domain.ResetTokenLifetime)
		} else {
			token, err = security.GenerateSecureToken(resetTokenBytes)
			if err != nil {
				return fmt.Errorf("generate reset token: %w", err)
			}
			if err := s.credentials.SetResetToken(ctx, email.UserID, token, now); err != nil {
				return fmt.Errorf("store reset token: %w", err)
			}
			expiresAt = now.Add(domain.ResetTokenLifetime)
		}

		emailSecret, err := s.emails.GetSecret(ctx, email.ID)
		if err != nil {
			return fmt.Errorf("fetch email secret: %w", err)
		}
		if !emailSecret.MayResendReset(now) {
			return nil
		}
		if err := s.emails.TouchResetSent(ctx, email.ID, now); err != nil {
			return fmt.Errorf("record reset notification: %w", err)
		}

		s.publish(ctx, "password_reset", func(ctx context.Context) error {
			return s.publisher.PublishPasswordReset(ctx, domain.PasswordResetRequestedEvent{
				UserID:      email.UserID,
				Email:       email.Address,
				MaskedEmail: logger.MaskEmail(email.Address),
				Token:       token,
				ExpiresAt:   expiresAt,
				RequestedAt: now,
			})
		})
		return nil
	})
}

// ResetPassword redeems a reset token. A mismatch bumps the failed counter in
// its own transaction; 20 failures inside the token's lifetime void it. On
// success every session for the account is revoked.
func (s *IdentityService) ResetPassword(ctx context.Context, userID, token, newPassword string) (bool, error) {
	redeemed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		secret, err := s.credentials.GetForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("fetch credentials: %w", err)
		}

		now := s.now().UTC()
		if !secret.ResetTokenValid(now) {
			return nil
		}
		if !security.TokensEqual(token, *secret.ResetPasswordToken) {
			if err := s.credentials.RecordResetFailure(ctx, userID, secret.FailedResetCount+1); err != nil {
				return fmt.Errorf("record reset failure: %w", err)
			}
			return nil
		}
		redeemed = true
		return nil
	})
	if err != nil || !redeemed {
		return false, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("fetch user: %w", err)
	}
	if err := s.applyNewPassword(ctx, user, newPassword, "reset"); err != nil {
		return false, err
	}

	revoked, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return false, err
	}
	s.publishPasswordChanged(ctx, userID, "reset", revoked)
	return true, nil
}

// ChangePassword verifies the current password and installs a new one. Every
// other session for the account is revoked; the caller's own survives.
func (s *IdentityService) ChangePassword(ctx context.Context, userID, sessionID, oldPassword, newPassword string) error {
	secret, err := s.credentials.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewError(domain.CodeBadCredentials, "Incorrect password")
		}
		return fmt.Errorf("fetch credentials: %w", err)
	}

	var stored string
	if secret.PasswordHash != nil {
		stored = *secret.PasswordHash
	}
	ok, err := security.VerifyPassword(oldPassword, stored)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return domain.NewError(domain.CodeBadCredentials, "Incorrect password")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if err := s.applyNewPassword(ctx, user, newPassword, "change"); err != nil {
		return err
	}

	revoked, err := s.sessions.RevokeAllExcept(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	s.publishPasswordChanged(ctx, userID, "change", revoked)
	return nil
}

// RequestAccountDeletion mints a deletion token and mails it to the user's
// best address: primary first, then any verified, then any at all.
func (s *IdentityService) RequestAccountDeletion(ctx context.Context, userID string) error {
	addresses, err := s.emails.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list emails: %w", err)
	}
	target := pickDeletionAddress(addresses)
	if target == nil {
		return domain.NewError(domain.CodeNotFound, "No email address on file")
	}

	token, err := security.GenerateSecureToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generate deletion token: %w", err)
	}
	now := s.now().UTC()
	if err := s.credentials.SetDeleteToken(ctx, userID, token, now); err != nil {
		return fmt.Errorf("store deletion token: %w", err)
	}

	s.publish(ctx, "account_deletion", func(ctx context.Context) error {
		return s.publisher.PublishAccountDeletion(ctx, domain.AccountDeletionRequestedEvent{
			UserID:      userID,
			Email:       target.Address,
			MaskedEmail: logger.MaskEmail(target.Address),
			Token:       token,
			ExpiresAt:   now.Add(domain.ResetTokenLifetime),
			RequestedAt: now,
		})
	})
	return nil
}

// ConfirmAccountDeletion redeems a deletion token and erases the account.
// All sessions are revoked before the row cascade runs.
func (s *IdentityService) ConfirmAccountDeletion(ctx context.Context, userID, token string) error {
	secret, err := s.credentials.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.NewError(domain.CodeDenied, "Invalid account deletion token")
		}
		return fmt.Errorf("fetch credentials: %w", err)
	}

	now := s.now().UTC()
	if !secret.DeleteTokenValid(now) || !security.TokensEqual(token, *secret.DeleteAccountToken) {
		return domain.NewError(domain.CodeDenied, "Invalid account deletion token")
	}

	if _, err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.logger.Info("account deleted", zap.String("user_id", userID))
	return nil
}

func (s *IdentityService) resolveLoginUser(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		email, err := s.emails.ResolveLogin(ctx, strings.ToLower(identifier))
		if err != nil {
			return nil, err
		}
		return s.users.GetByID(ctx, email.UserID)
	}
	return s.users.GetByUsername(ctx, identifier)
}

func (s *IdentityService) applyNewPassword(ctx context.Context, user *domain.User, password, reason string) error {
	if err := validatePassword(password, user.Username); err != nil {
		return err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.credentials.SetPassword(ctx, user.ID, hash, s.now().UTC()); err != nil {
		return fmt.Errorf("store password: %w", err)
	}
	s.logger.Info("password updated", zap.String("user_id", user.ID), zap.String("reason", reason))
	return nil
}

func (s *IdentityService) recordUnknownAddress(ctx context.Context, address string) error {
	now := s.now().UTC()
	record, err := s.unregistered.Get(ctx, address)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("fetch unregistered reset record: %w", err)
	}

	next := domain.UnregisteredPasswordReset{Email: address, AttemptCount: 1, LastAttemptAt: now}
	notify := true
	if record != nil {
		next.AttemptCount = record.AttemptCount + 1
		notify = record.ShouldNotify(now)
		if !notify {
			next.LastAttemptAt = record.LastAttemptAt
		}
	}
	if err := s.unregistered.Upsert(ctx, next); err != nil {
		return fmt.Errorf("record unregistered reset attempt: %w", err)
	}
	if !notify {
		return nil
	}

	s.publish(ctx, "unknown_address_reset", func(ctx context.Context) error {
		return s.publisher.PublishUnknownAddressReset(ctx, domain.UnknownAddressResetEvent{
			Email:        address,
			MaskedEmail:  logger.MaskEmail(address),
			AttemptCount: next.AttemptCount,
			AttemptedAt:  now,
		})
	})
	return nil
}

func (s *IdentityService) publishPasswordChanged(ctx context.Context, userID, reason string, revoked int) {
	s.publish(ctx, "password_changed", func(ctx context.Context) error {
		return s.publisher.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			UserID:          userID,
			ChangedAt:       s.now().UTC(),
			Reason:          reason,
			SessionsRevoked: revoked,
		})
	})
}

func (s *IdentityService) publish(ctx context.Context, kind string, fn func(ctx context.Context) error) {
	if s.publisher == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.Warn("failed to publish notification", zap.String("kind", kind), zap.Error(err))
	}
}

func pickDeletionAddress(addresses []domain.UserEmail) *domain.UserEmail {
	var verified *domain.UserEmail
	for i := range addresses {
		email := &addresses[i]
		if email.Primary {
			return email
		}
		if email.Verified && verified == nil {
			verified = email
		}
	}
	if verified != nil {
		return verified
	}
	if len(addresses) > 0 {
		return &addresses[0]
	}
	return nil
}

func validatePassword(password string, userInputs ...string) error {
	validator := security.DefaultPasswordValidator(userInputs...)
	if err := validator.Validate(password); err != nil {
		return domain.NewError(domain.CodeWeakPassword, err.Error())
	}
	return nil
}
