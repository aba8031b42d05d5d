package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"data",
	"secret_hash",
	"created_at",
	"expires_at",
}

// SessionRepository implements port.SessionLedger using PostgreSQL. The
// ledger is the durable record; the cache handles the validation hot path.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository wires a PostgreSQL-backed session ledger.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a session row.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	data, err := json.Marshal(session.Data)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}

	stmt, args, err := r.builder.Insert("sessions").
		Columns(sessionColumns...).
		Values(session.ID, session.UserID, data, session.SecretHash, session.CreatedAt, session.ExpiresAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := executorFor(ctx, r.exec).Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get retrieves a session row by id.
func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From("sessions").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	var (
		session    domain.Session
		data       []byte
		secretHash sql.NullString
	)
	row := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&data,
		&secretHash,
		&session.CreatedAt,
		&session.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &session.Data); err != nil {
			return nil, fmt.Errorf("unmarshal session data: %w", err)
		}
	}
	if secretHash.Valid {
		session.SecretHash = &secretHash.String
	}
	return &session, nil
}

// Delete removes a session row.
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("sessions").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	tag, err := executorFor(ctx, r.exec).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteAllForUser removes every session row for the user and returns the
// deleted ids so the cache entries can be evicted.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) ([]string, error) {
	stmt, args, err := r.builder.Delete("sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build revoke sessions sql: %w", err)
	}
	return r.deleteReturning(ctx, stmt, args)
}

// DeleteAllExcept removes every session row for the user but the given one.
func (r *SessionRepository) DeleteAllExcept(ctx context.Context, userID, keepID string) ([]string, error) {
	stmt, args, err := r.builder.Delete("sessions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.NotEq{"id": keepID}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build revoke sessions sql: %w", err)
	}
	return r.deleteReturning(ctx, stmt, args)
}

func (r *SessionRepository) deleteReturning(ctx context.Context, stmt string, args []any) ([]string, error) {
	rows, err := executorFor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("revoke sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan revoked session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revoked session ids: %w", err)
	}
	return ids, nil
}
