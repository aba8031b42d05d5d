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

var userSecretColumns = []string{
	"user_id",
	"password_hash",
	"last_login_at",
	"failed_password_attempts",
	"first_failed_password_attempt",
	"reset_password_token",
	"reset_password_token_generated",
	"failed_reset_password_attempts",
	"delete_account_token",
	"delete_account_token_generated",
}

// CredentialRepository implements port.CredentialRepository using PostgreSQL.
type CredentialRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCredentialRepository wires a PostgreSQL-backed credential repository.
func NewCredentialRepository(exec pgExecutor) *CredentialRepository {
	return &CredentialRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the per-user secret row.
func (r *CredentialRepository) Create(ctx context.Context, secret domain.UserSecret) error {
	stmt, args, err := r.builder.Insert("user_secrets").
		Columns("user_id", "password_hash").
		Values(secret.UserID, secret.PasswordHash).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert secret sql: %w", err)
	}

	if _, err := executorFor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert secret: %w", err)
	}
	return nil
}

// Get retrieves the secret row for a user.
func (r *CredentialRepository) Get(ctx context.Context, userID string) (*domain.UserSecret, error) {
	return r.get(ctx, userID, false)
}

// GetForUpdate retrieves the secret row and takes the row lock that
// serializes concurrent login and reset attempts against the account.
func (r *CredentialRepository) GetForUpdate(ctx context.Context, userID string) (*domain.UserSecret, error) {
	return r.get(ctx, userID, true)
}

func (r *CredentialRepository) get(ctx context.Context, userID string, forUpdate bool) (*domain.UserSecret, error) {
	query := r.builder.
		Select(userSecretColumns...).
		From("user_secrets").
		Where(squirrel.Eq{"user_id": userID})
	if forUpdate {
		query = query.Suffix("FOR UPDATE")
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select secret sql: %w", err)
	}

	row := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...)

	var (
		secret       domain.UserSecret
		passwordHash sql.NullString
		lastLogin    *time.Time
		firstFailed  *time.Time
		resetToken   sql.NullString
		resetSetAt   *time.Time
		deleteToken  sql.NullString
		deleteSetAt  *time.Time
	)
	if err := row.Scan(
		&secret.UserID,
		&passwordHash,
		&lastLogin,
		&secret.FailedPasswordCount,
		&firstFailed,
		&resetToken,
		&resetSetAt,
		&secret.FailedResetCount,
		&deleteToken,
		&deleteSetAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select secret: %w", err)
	}

	if passwordHash.Valid {
		secret.PasswordHash = &passwordHash.String
	}
	secret.LastLoginAt = lastLogin
	secret.FirstFailedAt = firstFailed
	if resetToken.Valid {
		secret.ResetPasswordToken = &resetToken.String
	}
	secret.ResetPasswordSetAt = resetSetAt
	if deleteToken.Valid {
		secret.DeleteAccountToken = &deleteToken.String
	}
	secret.DeleteAccountSetAt = deleteSetAt
	return &secret, nil
}

// RecordLoginFailure stores the failed-attempt counter and its window anchor.
func (r *CredentialRepository) RecordLoginFailure(ctx context.Context, userID string, count int, firstFailedAt time.Time) error {
	stmt, args, err := r.builder.Update("user_secrets").
		Set("failed_password_attempts", count).
		Set("first_failed_password_attempt", firstFailedAt).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login failure sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args, "record login failure")
}

// RecordLoginSuccess clears the failure streak and stamps the login time.
func (r *CredentialRepository) RecordLoginSuccess(ctx context.Context, userID string, at time.Time) error {
	stmt, args, err := r.builder.Update("user_secrets").
		Set("failed_password_attempts", 0).
		Set("first_failed_password_attempt", nil).
		Set("last_login_at", at).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record login success sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args, "record login success")
}

// SetPassword stores a new hash and clears reset and lockout state.
func (r *CredentialRepository) SetPassword(ctx context.Context, userID string, hash string, at time.Time) error {
	stmt, args, err := r.builder.Update("user_secrets").
		Set("password_hash", hash).
		Set("failed_password_attempts", 0).
		Set("first_failed_password_attempt", nil).
		Set("reset_password_token", nil).
		Set("reset_password_token_generated", nil).
		Set("failed_reset_password_attempts", 0).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set password sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args, "set password")
}

// SetResetToken stores a fresh reset token and restarts its attempt counter.
func (r *CredentialRepository) SetResetToken(ctx context.Context, userID string, token string, at time.Time) error {
	stmt, args, err := r.builder.Update("user_secrets").
		Set("reset_password_token", token).
		Set("reset_password_token_generated", at).
		Set("failed_reset_password_attempts", 0).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set reset token sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args, "set reset token")
}

// RecordResetFailure stores the failed reset-attempt counter.
func (r *CredentialRepository) RecordResetFailure(ctx context.Context, userID string, count int) error {
	stmt, args, err := r.builder.Update("user_secrets").
		Set("failed_reset_password_attempts", count).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record reset failure sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args, "record reset failure")
}

// SetDeleteToken stores a fresh account-deletion token.
func (r *CredentialRepository) SetDeleteToken(ctx context.Context, userID string, token string, at time.Time) error {
	stmt, args, err := r.builder.Update("user_secrets").
		Set("delete_account_token", token).
		Set("delete_account_token_generated", at).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set delete token sql: %w", err)
	}
	return r.execUpdate(ctx, stmt, args, "set delete token")
}

func (r *CredentialRepository) execUpdate(ctx context.Context, stmt string, args []any, action string) error {
	tag, err := executorFor(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
