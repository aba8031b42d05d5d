package domain

import "time"

// Role enumerates account privilege tiers.
type Role string

const (
	RoleUser    Role = "user"
	RoleSponsor Role = "sponsor"
	RolePro     Role = "pro"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSponsor, RolePro, RoleAdmin:
		return true
	}
	return false
}

// Outranks reports whether r grants strictly more privilege than other.
// Admin is never reachable through role resolution, only by operators.
func (r Role) Outranks(other Role) bool {
	return roleRank(r) > roleRank(other)
}

func roleRank(r Role) int {
	switch r {
	case RoleAdmin:
		return 3
	case RolePro:
		return 2
	case RoleSponsor:
		return 1
	default:
		return 0
	}
}

// User is the public identity record. Secret material lives in UserSecret.
type User struct {
	ID        string
	Username  string
	Name      string
	AvatarURL string
	Bio       string
	Role      Role
	Verified  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserInput carries the fields accepted by the account-creation choke point.
type NewUserInput struct {
	Username      string
	Email         string
	EmailVerified bool
	Name          string
	AvatarURL     string
	Role          Role
	Password      string
}

// UserSecret is the per-user credential record, one row per user, never
// exposed through the API. A nil PasswordHash means the account is OAuth-only.
type UserSecret struct {
	UserID              string
	PasswordHash        *string
	LastLoginAt         *time.Time
	FailedPasswordCount int
	FirstFailedAt       *time.Time
	ResetPasswordToken  *string
	ResetPasswordSetAt  *time.Time
	FailedResetCount    int
	DeleteAccountToken  *string
	DeleteAccountSetAt  *time.Time
}

const (
	// LoginLockoutThreshold is the number of failed attempts that locks an account.
	LoginLockoutThreshold = 3
	// LoginLockoutWindow is anchored to the first failure in the current streak.
	LoginLockoutWindow = 5 * time.Minute

	// ResetTokenLifetime bounds both reset and delete-account tokens.
	ResetTokenLifetime = 3 * 24 * time.Hour
	// ResetLockoutThreshold caps failed reset attempts inside a token's lifetime.
	ResetLockoutThreshold = 20

	// ResetNotificationInterval rate-limits reset emails per address.
	ResetNotificationInterval = 3 * time.Minute
	// UnregisteredResetInterval rate-limits reset emails to unknown addresses.
	UnregisteredResetInterval = 15 * time.Minute
)

// LoginLocked reports whether the sliding lockout window is active at the
// supplied moment. The window is anchored to the first failure in the streak.
func (s UserSecret) LoginLocked(at time.Time) bool {
	if s.FailedPasswordCount < LoginLockoutThreshold || s.FirstFailedAt == nil {
		return false
	}
	return at.Before(s.FirstFailedAt.Add(LoginLockoutWindow))
}

// NextLoginFailure returns the counter and anchor to persist after a failed
// attempt at the supplied moment. An expired window restarts the streak.
func (s UserSecret) NextLoginFailure(at time.Time) (int, time.Time) {
	if s.FirstFailedAt == nil || !at.Before(s.FirstFailedAt.Add(LoginLockoutWindow)) {
		return 1, at
	}
	return s.FailedPasswordCount + 1, *s.FirstFailedAt
}

// ResetTokenValid reports whether a reset token is inside its lifetime and
// under the failed-attempt cap at the supplied moment.
func (s UserSecret) ResetTokenValid(at time.Time) bool {
	if s.ResetPasswordToken == nil || s.ResetPasswordSetAt == nil {
		return false
	}
	if at.After(s.ResetPasswordSetAt.Add(ResetTokenLifetime)) {
		return false
	}
	return s.FailedResetCount < ResetLockoutThreshold
}

// DeleteTokenValid reports whether the account-deletion token is unexpired.
func (s UserSecret) DeleteTokenValid(at time.Time) bool {
	if s.DeleteAccountToken == nil || s.DeleteAccountSetAt == nil {
		return false
	}
	return !at.After(s.DeleteAccountSetAt.Add(ResetTokenLifetime))
}

// UserEmail is one of a user's addresses. A verified address is globally
// unique; uniqueness is not enforced before verification so an attacker
// cannot squat an address to probe for accounts.
type UserEmail struct {
	ID        string
	UserID    string
	Address   string
	Verified  bool
	Primary   bool
	CreatedAt time.Time
}

// UserEmailSecret holds the verification token and per-address send
// timestamps. The reset timestamp is a rate limit independent of the
// account-level reset token.
type UserEmailSecret struct {
	EmailID             string
	VerificationToken   *string
	VerificationSentAt  *time.Time
	PasswordResetSentAt *time.Time
}

// MayResendReset reports whether a reset notification may go out for this
// address at the supplied moment.
func (s UserEmailSecret) MayResendReset(at time.Time) bool {
	if s.PasswordResetSentAt == nil {
		return true
	}
	return !at.Before(s.PasswordResetSentAt.Add(ResetNotificationInterval))
}

// UserAuthentication links one OAuth provider identity to a local account.
// The (Service, Identifier) pair is globally unique.
type UserAuthentication struct {
	ID         string
	UserID     string
	Service    string
	Identifier string
	Details    map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UserAuthenticationSecret stores provider credential material, never exposed.
type UserAuthenticationSecret struct {
	AuthenticationID string
	Details          map[string]any
}

// ProviderProfile is the normalized view of an OAuth provider's profile
// response used for registration and linking.
type ProviderProfile struct {
	Username  string
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// UnregisteredPasswordReset rate-limits forgot-password notifications for
// addresses with no matching account without revealing account existence.
type UnregisteredPasswordReset struct {
	Email         string
	AttemptCount  int
	LastAttemptAt time.Time
}

// ShouldNotify reports whether another notification may be sent at the
// supplied moment.
func (u UnregisteredPasswordReset) ShouldNotify(at time.Time) bool {
	return !at.Before(u.LastAttemptAt.Add(UnregisteredResetInterval))
}
