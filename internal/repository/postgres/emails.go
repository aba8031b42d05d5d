package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

var userEmailColumns = []string{
	"id",
	"user_id",
	"email",
	"is_verified",
	"is_primary",
	"created_at",
}

// EmailRepository implements port.EmailRepository using PostgreSQL.
type EmailRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewEmailRepository wires a PostgreSQL-backed email repository.
func NewEmailRepository(exec pgExecutor) *EmailRepository {
	return &EmailRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the address and its secret row together.
func (r *EmailRepository) Create(ctx context.Context, email domain.UserEmail, verificationToken *string) error {
	stmt, args, err := r.builder.Insert("user_emails").
		Columns(userEmailColumns...).
		Values(email.ID, email.UserID, email.Address, email.Verified, email.Primary, email.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert email sql: %w", err)
	}

	exec := executorFor(ctx, r.exec)
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert email: %w", err)
	}

	stmt, args, err = r.builder.Insert("user_email_secrets").
		Columns("user_email_id", "verification_token").
		Values(email.ID, verificationToken).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert email secret sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert email secret: %w", err)
	}
	return nil
}

// GetByID retrieves an address by identifier.
func (r *EmailRepository) GetByID(ctx context.Context, id string) (*domain.UserEmail, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, nil, false)
}

// GetForUpdate retrieves an address and takes its row lock.
func (r *EmailRepository) GetForUpdate(ctx context.Context, id string) (*domain.UserEmail, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id}, nil, true)
}

// ResolveLogin picks the account row for a login identifier. A verified
// address wins outright; otherwise the earliest registered claim does.
func (r *EmailRepository) ResolveLogin(ctx context.Context, address string) (*domain.UserEmail, error) {
	return r.getOne(ctx, squirrel.Eq{"email": address},
		[]string{"is_verified DESC", "created_at ASC"}, false)
}

// ResolveReset picks the address row for a forgot-password request. Verified
// first, then the most recent claim.
func (r *EmailRepository) ResolveReset(ctx context.Context, address string) (*domain.UserEmail, error) {
	return r.getOne(ctx, squirrel.Eq{"email": address},
		[]string{"is_verified DESC", "created_at DESC"}, false)
}

// FindVerified retrieves the verified row for an address, if any. At most
// one can exist.
func (r *EmailRepository) FindVerified(ctx context.Context, address string) (*domain.UserEmail, error) {
	return r.getOne(ctx, squirrel.Eq{"email": address, "is_verified": true}, nil, false)
}

func (r *EmailRepository) getOne(ctx context.Context, pred squirrel.Eq, orderBy []string, forUpdate bool) (*domain.UserEmail, error) {
	query := r.builder.
		Select(userEmailColumns...).
		From("user_emails").
		Where(pred).
		Limit(1)
	for _, clause := range orderBy {
		query = query.OrderBy(clause)
	}
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select email sql: %w", err)
	}

	var email domain.UserEmail
	row := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&email.ID,
		&email.UserID,
		&email.Address,
		&email.Verified,
		&email.Primary,
		&email.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select email: %w", err)
	}
	return &email, nil
}

// VerifiedAddressExists reports whether any account holds the address verified.
func (r *EmailRepository) VerifiedAddressExists(ctx context.Context, address string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From("user_emails").
		Where(squirrel.Eq{"email": address, "is_verified": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build email exists sql: %w", err)
	}

	var one int
	if err := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check email: %w", err)
	}
	return true, nil
}

// ListByUser returns the user's addresses, primary and verified first.
func (r *EmailRepository) ListByUser(ctx context.Context, userID string) ([]domain.UserEmail, error) {
	stmt, args, err := r.builder.
		Select(userEmailColumns...).
		From("user_emails").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("is_primary DESC", "is_verified DESC", "created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list emails sql: %w", err)
	}

	rows, err := executorFor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	defer rows.Close()

	var emails []domain.UserEmail
	for rows.Next() {
		var email domain.UserEmail
		if err := rows.Scan(
			&email.ID,
			&email.UserID,
			&email.Address,
			&email.Verified,
			&email.Primary,
			&email.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		emails = append(emails, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate emails: %w", err)
	}
	return emails, nil
}

// MarkVerified flips the verified flag and drops the spent token.
func (r *EmailRepository) MarkVerified(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Update("user_emails").
		Set("is_verified", true).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark verified sql: %w", err)
	}

	exec := executorFor(ctx, r.exec)
	tag, err := exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	stmt, args, err = r.builder.Update("user_email_secrets").
		Set("verification_token", nil).
		Where(squirrel.Eq{"user_email_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear verification token sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("clear verification token: %w", err)
	}
	return nil
}

// SetPrimary demotes the current primary and promotes the given address in
// two statements inside the caller's transaction.
func (r *EmailRepository) SetPrimary(ctx context.Context, userID, emailID string) error {
	exec := executorFor(ctx, r.exec)

	stmt, args, err := r.builder.Update("user_emails").
		Set("is_primary", false).
		Where(squirrel.Eq{"user_id": userID, "is_primary": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build demote primary sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("demote primary: %w", err)
	}

	stmt, args, err = r.builder.Update("user_emails").
		Set("is_primary", true).
		Where(squirrel.Eq{"id": emailID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build promote primary sql: %w", err)
	}
	tag, err := exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("promote primary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes an address; the secret row cascades.
func (r *EmailRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("user_emails").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete email sql: %w", err)
	}

	tag, err := executorFor(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountRemaining counts the user's addresses as the current transaction
// sees them, after any deletes already issued in it.
func (r *EmailRepository) CountRemaining(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.
		Select("count(*)").
		From("user_emails").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count emails sql: %w", err)
	}

	var count int
	if err := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count emails: %w", err)
	}
	return count, nil
}

// GetSecret retrieves the secret row for an address.
func (r *EmailRepository) GetSecret(ctx context.Context, emailID string) (*domain.UserEmailSecret, error) {
	stmt, args, err := r.builder.
		Select("user_email_id", "verification_token", "verification_email_sent_at", "password_reset_email_sent_at").
		From("user_email_secrets").
		Where(squirrel.Eq{"user_email_id": emailID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select email secret sql: %w", err)
	}

	var (
		secret           domain.UserEmailSecret
		token            sql.NullString
		verificationSent *time.Time
		resetSent        *time.Time
	)
	row := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	if err := row.Scan(&secret.EmailID, &token, &verificationSent, &resetSent); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select email secret: %w", err)
	}

	if token.Valid {
		secret.VerificationToken = &token.String
	}
	secret.VerificationSentAt = verificationSent
	secret.PasswordResetSentAt = resetSent
	return &secret, nil
}

// TouchVerificationSent stamps the verification-mail rate limit.
func (r *EmailRepository) TouchVerificationSent(ctx context.Context, emailID string, at time.Time) error {
	return r.touch(ctx, "verification_email_sent_at", emailID, at)
}

// TouchResetSent stamps the reset-mail rate limit.
func (r *EmailRepository) TouchResetSent(ctx context.Context, emailID string, at time.Time) error {
	return r.touch(ctx, "password_reset_email_sent_at", emailID, at)
}

func (r *EmailRepository) touch(ctx context.Context, column, emailID string, at time.Time) error {
	stmt, args, err := r.builder.Update("user_email_secrets").
		Set(column, at).
		Where(squirrel.Eq{"user_email_id": emailID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch %s sql: %w", column, err)
	}

	tag, err := executorFor(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("touch %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
