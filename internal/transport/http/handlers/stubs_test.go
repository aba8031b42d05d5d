package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

// In-memory implementations of the persistence ports backing the handler
// tests in this package.

type stubUsers struct {
	byID map[string]*domain.User
}

func newStubUsers() *stubUsers {
	return &stubUsers{byID: make(map[string]*domain.User)}
}

func (s *stubUsers) add(user domain.User) {
	u := user
	s.byID[u.ID] = &u
}

func (s *stubUsers) Create(ctx context.Context, user domain.User) error {
	for _, existing := range s.byID {
		if existing.Username == user.Username {
			return repository.ErrConflict
		}
	}
	s.add(user)
	return nil
}

func (s *stubUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *stubUsers) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, user := range s.byID {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUsers) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := s.GetByUsername(ctx, username)
	return err == nil, nil
}

func (s *stubUsers) Update(ctx context.Context, user domain.User) error {
	if _, ok := s.byID[user.ID]; !ok {
		return repository.ErrNotFound
	}
	s.add(user)
	return nil
}

func (s *stubUsers) SetVerified(ctx context.Context, id string, verified bool) error {
	user, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Verified = verified
	return nil
}

func (s *stubUsers) Delete(ctx context.Context, id string) error {
	delete(s.byID, id)
	return nil
}

type stubCredentials struct {
	byUser map[string]*domain.UserSecret
}

func newStubCredentials() *stubCredentials {
	return &stubCredentials{byUser: make(map[string]*domain.UserSecret)}
}

func (s *stubCredentials) add(secret domain.UserSecret) {
	copied := secret
	s.byUser[copied.UserID] = &copied
}

func (s *stubCredentials) Create(ctx context.Context, secret domain.UserSecret) error {
	if _, ok := s.byUser[secret.UserID]; ok {
		return repository.ErrConflict
	}
	s.add(secret)
	return nil
}

func (s *stubCredentials) Get(ctx context.Context, userID string) (*domain.UserSecret, error) {
	secret, ok := s.byUser[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *secret
	return &copied, nil
}

func (s *stubCredentials) GetForUpdate(ctx context.Context, userID string) (*domain.UserSecret, error) {
	return s.Get(ctx, userID)
}

func (s *stubCredentials) RecordLoginFailure(ctx context.Context, userID string, count int, firstFailedAt time.Time) error {
	secret, ok := s.byUser[userID]
	if !ok {
		return repository.ErrNotFound
	}
	secret.FailedPasswordCount = count
	anchor := firstFailedAt
	secret.FirstFailedAt = &anchor
	return nil
}

func (s *stubCredentials) RecordLoginSuccess(ctx context.Context, userID string, at time.Time) error {
	secret, ok := s.byUser[userID]
	if !ok {
		return repository.ErrNotFound
	}
	secret.FailedPasswordCount = 0
	secret.FirstFailedAt = nil
	when := at
	secret.LastLoginAt = &when
	return nil
}

func (s *stubCredentials) SetPassword(ctx context.Context, userID string, hash string, at time.Time) error {
	secret, ok := s.byUser[userID]
	if !ok {
		return repository.ErrNotFound
	}
	h := hash
	secret.PasswordHash = &h
	return nil
}

func (s *stubCredentials) SetResetToken(ctx context.Context, userID string, token string, at time.Time) error {
	return nil
}

func (s *stubCredentials) RecordResetFailure(ctx context.Context, userID string, count int) error {
	return nil
}

func (s *stubCredentials) SetDeleteToken(ctx context.Context, userID string, token string, at time.Time) error {
	return nil
}

type stubEmails struct {
	byID    map[string]*domain.UserEmail
	secrets map[string]*domain.UserEmailSecret
}

func newStubEmails() *stubEmails {
	return &stubEmails{
		byID:    make(map[string]*domain.UserEmail),
		secrets: make(map[string]*domain.UserEmailSecret),
	}
}

func (s *stubEmails) add(email domain.UserEmail) {
	e := email
	s.byID[e.ID] = &e
	s.secrets[e.ID] = &domain.UserEmailSecret{EmailID: e.ID}
}

func (s *stubEmails) Create(ctx context.Context, email domain.UserEmail, verificationToken *string) error {
	if _, ok := s.byID[email.ID]; ok {
		return repository.ErrConflict
	}
	s.add(email)
	s.secrets[email.ID].VerificationToken = verificationToken
	return nil
}

func (s *stubEmails) GetByID(ctx context.Context, id string) (*domain.UserEmail, error) {
	email, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *email
	return &copied, nil
}

func (s *stubEmails) GetForUpdate(ctx context.Context, id string) (*domain.UserEmail, error) {
	return s.GetByID(ctx, id)
}

func (s *stubEmails) ResolveLogin(ctx context.Context, address string) (*domain.UserEmail, error) {
	for _, email := range s.byID {
		if strings.EqualFold(email.Address, address) {
			copied := *email
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubEmails) ResolveReset(ctx context.Context, address string) (*domain.UserEmail, error) {
	return s.ResolveLogin(ctx, address)
}

func (s *stubEmails) FindVerified(ctx context.Context, address string) (*domain.UserEmail, error) {
	for _, email := range s.byID {
		if strings.EqualFold(email.Address, address) && email.Verified {
			copied := *email
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubEmails) VerifiedAddressExists(ctx context.Context, address string) (bool, error) {
	_, err := s.FindVerified(ctx, address)
	return err == nil, nil
}

func (s *stubEmails) ListByUser(ctx context.Context, userID string) ([]domain.UserEmail, error) {
	var out []domain.UserEmail
	for _, email := range s.byID {
		if email.UserID == userID {
			out = append(out, *email)
		}
	}
	return out, nil
}

func (s *stubEmails) MarkVerified(ctx context.Context, id string) error {
	email, ok := s.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	email.Verified = true
	return nil
}

func (s *stubEmails) SetPrimary(ctx context.Context, userID, emailID string) error {
	return nil
}

func (s *stubEmails) Delete(ctx context.Context, id string) error {
	delete(s.byID, id)
	delete(s.secrets, id)
	return nil
}

func (s *stubEmails) CountRemaining(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, email := range s.byID {
		if email.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (s *stubEmails) GetSecret(ctx context.Context, emailID string) (*domain.UserEmailSecret, error) {
	secret, ok := s.secrets[emailID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *secret
	return &copied, nil
}

func (s *stubEmails) TouchVerificationSent(ctx context.Context, emailID string, at time.Time) error {
	secret, ok := s.secrets[emailID]
	if !ok {
		return repository.ErrNotFound
	}
	when := at
	secret.VerificationSentAt = &when
	return nil
}

func (s *stubEmails) TouchResetSent(ctx context.Context, emailID string, at time.Time) error {
	return nil
}

type stubLedger struct {
	byID map[string]*domain.Session
}

func newStubLedger() *stubLedger {
	return &stubLedger{byID: make(map[string]*domain.Session)}
}

func (s *stubLedger) Create(ctx context.Context, session domain.Session) error {
	copied := session
	s.byID[copied.ID] = &copied
	return nil
}

func (s *stubLedger) Get(ctx context.Context, id string) (*domain.Session, error) {
	session, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *stubLedger) Delete(ctx context.Context, id string) error {
	if _, ok := s.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *stubLedger) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for id, session := range s.byID {
		if session.UserID == userID {
			ids = append(ids, id)
			delete(s.byID, id)
		}
	}
	return ids, nil
}

func (s *stubLedger) DeleteAllExcept(ctx context.Context, userID, keepID string) ([]string, error) {
	var ids []string
	for id, session := range s.byID {
		if session.UserID == userID && id != keepID {
			ids = append(ids, id)
			delete(s.byID, id)
		}
	}
	return ids, nil
}

type stubCache struct {
	byID map[string]*domain.CachedSession
}

func newStubCache() *stubCache {
	return &stubCache{byID: make(map[string]*domain.CachedSession)}
}

func (s *stubCache) Put(ctx context.Context, entry domain.CachedSession, ttl time.Duration) error {
	copied := entry
	s.byID[copied.ID] = &copied
	return nil
}

func (s *stubCache) Get(ctx context.Context, id string) (*domain.CachedSession, error) {
	entry, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

func (s *stubCache) Delete(ctx context.Context, id string) error {
	delete(s.byID, id)
	return nil
}

type stubUnregistered struct{}

func (stubUnregistered) Get(ctx context.Context, email string) (*domain.UnregisteredPasswordReset, error) {
	return nil, repository.ErrNotFound
}

func (stubUnregistered) Upsert(ctx context.Context, record domain.UnregisteredPasswordReset) error {
	return nil
}

// nopTx satisfies port.Transactor without a database.
type nopTx struct{}

func (nopTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
