package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/repository"
)

// ApiKeyRepository implements port.ApiKeyStore using PostgreSQL. Keys are
// stored hashed in authn.api_keys; the raw key never reaches this layer.
type ApiKeyRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewApiKeyRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewApiKeyRepository(exec pgExecutor) *ApiKeyRepository {
	repo := &ApiKeyRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// LookupPrincipal resolves a key hash to its principal. Missing, expired, and
// revoked keys all surface as ErrNotFound; callers collapse them into one
// opaque failure.
func (r *ApiKeyRepository) LookupPrincipal(ctx context.Context, keyHash string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(
			"p.id",
			"p.identity",
			"p.display_name",
			"p.first_name",
			"p.last_name",
			"p.is_active",
			"p.is_site_admin",
		).
		From("authn.api_keys k").
		Join("authn.principals p ON p.id = k.principal_id").
		Where(squirrel.Eq{"k.key_hash": keyHash}).
		Where(squirrel.Or{
			squirrel.Eq{"k.expires_at": nil},
			squirrel.Expr("k.expires_at > now()"),
		}).
		Where(squirrel.Eq{"k.revoked_at": nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select api key sql: %w", err)
	}

	var principal domain.Principal
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(
		&principal.ID,
		&principal.Identity,
		&principal.DisplayName,
		&principal.FirstName,
		&principal.LastName,
		&principal.Active,
		&principal.SiteAdmin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select api key principal: %w", err)
	}

	return &principal, nil
}

// TouchLastUsed records the most recent use of a key. Callers throttle
// invocations; each call performs a single write.
func (r *ApiKeyRepository) TouchLastUsed(ctx context.Context, keyHash string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("authn.api_keys").
		Set("last_used", at).
		Where(squirrel.Eq{"key_hash": keyHash}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update last used sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.ApiKeyStore = (*ApiKeyRepository)(nil)
