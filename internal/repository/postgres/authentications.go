package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/DanielFGray/postgres.garden-sub001/internal/core/domain"
	"github.com/DanielFGray/postgres.garden-sub001/internal/repository"
)

var userAuthenticationColumns = []string{
	"id",
	"user_id",
	"service",
	"identifier",
	"details",
	"created_at",
	"updated_at",
}

// AuthenticationRepository implements port.AuthenticationRepository using
// PostgreSQL. Provider detail blobs are stored as jsonb.
type AuthenticationRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuthenticationRepository wires a PostgreSQL-backed authentication repository.
func NewAuthenticationRepository(exec pgExecutor) *AuthenticationRepository {
	return &AuthenticationRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByServiceIdentifier retrieves a linked identity by its provider pair.
func (r *AuthenticationRepository) GetByServiceIdentifier(ctx context.Context, service, identifier string) (*domain.UserAuthentication, error) {
	stmt, args, err := r.builder.
		Select(userAuthenticationColumns...).
		From("user_authentications").
		Where(squirrel.Eq{"service": service, "identifier": identifier}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select authentication sql: %w", err)
	}

	row := executorFor(ctx, r.exec).QueryRow(ctx, stmt, args...)
	auth, err := scanAuthentication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select authentication: %w", err)
	}
	return auth, nil
}

// Create inserts the identity and its secret row together.
func (r *AuthenticationRepository) Create(ctx context.Context, auth domain.UserAuthentication, secret domain.UserAuthenticationSecret) error {
	details, err := json.Marshal(auth.Details)
	if err != nil {
		return fmt.Errorf("marshal authentication details: %w", err)
	}
	secretDetails, err := json.Marshal(secret.Details)
	if err != nil {
		return fmt.Errorf("marshal authentication secret details: %w", err)
	}

	exec := executorFor(ctx, r.exec)

	stmt, args, err := r.builder.Insert("user_authentications").
		Columns(userAuthenticationColumns...).
		Values(auth.ID, auth.UserID, auth.Service, auth.Identifier, details, auth.CreatedAt, auth.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert authentication sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("insert authentication: %w", err)
	}

	stmt, args, err = r.builder.Insert("user_authentication_secrets").
		Columns("user_authentication_id", "details").
		Values(auth.ID, secretDetails).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert authentication secret sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert authentication secret: %w", err)
	}
	return nil
}

// UpdateDetails refreshes the stored provider blobs after a new OAuth round trip.
func (r *AuthenticationRepository) UpdateDetails(ctx context.Context, id string, details, secretDetails map[string]any) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal authentication details: %w", err)
	}
	secretJSON, err := json.Marshal(secretDetails)
	if err != nil {
		return fmt.Errorf("marshal authentication secret details: %w", err)
	}

	exec := executorFor(ctx, r.exec)

	stmt, args, err := r.builder.Update("user_authentications").
		Set("details", detailsJSON).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update authentication sql: %w", err)
	}
	tag, err := exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update authentication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	stmt, args, err = r.builder.Update("user_authentication_secrets").
		Set("details", secretJSON).
		Where(squirrel.Eq{"user_authentication_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update authentication secret sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update authentication secret: %w", err)
	}
	return nil
}

// ListByUser returns the identities linked to an account.
func (r *AuthenticationRepository) ListByUser(ctx context.Context, userID string) ([]domain.UserAuthentication, error) {
	stmt, args, err := r.builder.
		Select(userAuthenticationColumns...).
		From("user_authentications").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list authentications sql: %w", err)
	}

	rows, err := executorFor(ctx, r.exec).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list authentications: %w", err)
	}
	defer rows.Close()

	var auths []domain.UserAuthentication
	for rows.Next() {
		auth, err := scanAuthentication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan authentication: %w", err)
		}
		auths = append(auths, *auth)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authentications: %w", err)
	}
	return auths, nil
}

func scanAuthentication(row pgx.Row) (*domain.UserAuthentication, error) {
	var (
		auth    domain.UserAuthentication
		details []byte
	)
	if err := row.Scan(
		&auth.ID,
		&auth.UserID,
		&auth.Service,
		&auth.Identifier,
		&details,
		&auth.CreatedAt,
		&auth.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &auth.Details); err != nil {
			return nil, fmt.Errorf("unmarshal authentication details: %w", err)
		}
	}
	return &auth, nil
}
