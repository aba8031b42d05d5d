package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

// UnregisteredResetRepository implements port.UnregisteredResetRepository
// using PostgreSQL, keyed by address.
type UnregisteredResetRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUnregisteredResetRepository wires a PostgreSQL-backed repository.
func NewUnregisteredResetRepository(exec pgExecutor) *UnregisteredResetRepository {
	return &UnregisteredResetRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get retrieves the attempt record for an address.
func (r *UnregisteredResetRepository) Get(ctx context.Context, email string) (*domain.UnregisteredPasswordReset, error) {
	stmt, args, err := r.builder.
		Select("email", "attempts", "latest_attempt").
		From("unregistered_email_password_resets").
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select unregistered reset sql: %w", err)
	}

	var record domain.UnregisteredPasswordReset
	row := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	if err := row.Scan(&record.Email, &record.AttemptCount, &record.LastAttemptAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select unregistered reset: %w", err)
	}
	return &record, nil
}

// Upsert writes the attempt record, inserting or replacing by address.
func (r *UnregisteredResetRepository) Upsert(ctx context.Context, record domain.UnregisteredPasswordReset) error {
	stmt, args, err := r.builder.Insert("unregistered_email_password_resets").
		Columns("email", "attempts", "latest_attempt").
		Values(record.Email, record.AttemptCount, record.LastAttemptAt).
		Suffix("ON CONFLICT (email) DO UPDATE SET attempts = EXCLUDED.attempts, latest_attempt = EXCLUDED.latest_attempt").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert unregistered reset sql: %w", err)
	}

	if _, err := executorFor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert unregistered reset: %w", err)
	}
	return nil
}
