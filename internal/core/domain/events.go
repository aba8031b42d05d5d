package domain

import "time"

// Notification events are handed to the outbound job queue fire-and-forget.
// Delivery (rendering, retries) is the mailer worker's concern, not ours.

// PasswordResetRequestedEvent asks the mailer to deliver a reset token.
type PasswordResetRequestedEvent struct {
	UserID      string
	Email       string
	MaskedEmail string
	Token       string
	ExpiresAt   time.Time
	RequestedAt time.Time
}

// EmailVerificationEvent asks the mailer to deliver a verification token.
type EmailVerificationEvent struct {
	UserID      string
	EmailID     string
	Email       string
	MaskedEmail string
	Token       string
	SentAt      time.Time
}

// AccountDeletionRequestedEvent asks the mailer to deliver a deletion token.
type AccountDeletionRequestedEvent struct {
	UserID      string
	Email       string
	MaskedEmail string
	Token       string
	ExpiresAt   time.Time
	RequestedAt time.Time
}

// UnknownAddressResetEvent tells an address with no account that a password
// reset was attempted, without revealing whether any account exists.
type UnknownAddressResetEvent struct {
	Email        string
	MaskedEmail  string
	AttemptCount int
	AttemptedAt  time.Time
}

// ProviderLinkedEvent notifies the owner that an OAuth identity was attached
// to their existing account. Fresh registrations do not emit this.
type ProviderLinkedEvent struct {
	UserID   string
	Service  string
	LinkedAt time.Time
}

// PasswordChangedEvent records a completed password change or reset.
type PasswordChangedEvent struct {
	UserID          string
	ChangedAt       time.Time
	Reason          string
	SessionsRevoked int
}
