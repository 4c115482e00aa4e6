package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/platform-authn/internal/core/domain"
	"github.com/arklim/platform-authn/internal/core/port"
	"github.com/arklim/platform-authn/internal/repository"
)

// CredentialRepository implements port.CredentialStore using PostgreSQL.
// Principals live in authn.principals, the current credential in
// authn.credentials, prior hashes in authn.password_history.
type CredentialRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCredentialRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewCredentialRepository(exec pgExecutor) *CredentialRepository {
	repo := &CredentialRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the
// supplied transaction.
func (r *CredentialRepository) WithTx(tx pgx.Tx) *CredentialRepository {
	if tx == nil {
		return r
	}
	return &CredentialRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// LookupPrincipal resolves the canonical identity to a principal snapshot.
func (r *CredentialRepository) LookupPrincipal(ctx context.Context, identity string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select(
			"id",
			"identity",
			"display_name",
			"first_name",
			"last_name",
			"is_active",
			"is_site_admin",
		).
		From("authn.principals").
		Where(squirrel.Eq{"identity": identity}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal sql: %w", err)
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
		return nil, fmt.Errorf("select principal: %w", err)
	}

	return &principal, nil
}

// LookupHash returns the current password hash for the identity.
func (r *CredentialRepository) LookupHash(ctx context.Context, identity string) (string, error) {
	stmt, args, err := r.builder.
		Select("c.password_hash").
		From("authn.credentials c").
		Join("authn.principals p ON p.id = c.principal_id").
		Where(squirrel.Eq{"p.identity": identity}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build select hash sql: %w", err)
	}

	var hash string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&hash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("select password hash: %w", err)
	}

	return hash, nil
}

// LastChanged returns the timestamp of the most recent password change.
func (r *CredentialRepository) LastChanged(ctx context.Context, principalID string) (time.Time, error) {
	stmt, args, err := r.builder.
		Select("last_changed").
		From("authn.credentials").
		Where(squirrel.Eq{"principal_id": principalID}).
		ToSql()
	if err != nil {
		return time.Time{}, fmt.Errorf("build select last changed sql: %w", err)
	}

	var lastChanged time.Time
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&lastChanged); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, repository.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("select last changed: %w", err)
	}

	return lastChanged, nil
}

// CreateLogin provisions a credential row for an existing principal with an
// initial hash and a pending verification token.
func (r *CredentialRepository) CreateLogin(ctx context.Context, identity, hash, verification string) error {
	principal, err := r.LookupPrincipal(ctx, identity)
	if err != nil {
		return err
	}

	stmt, args, err := r.builder.
		Insert("authn.credentials").
		Columns("principal_id", "password_hash", "last_changed", "verification_token", "verified").
		Values(principal.ID, hash, time.Now().UTC(), verification, false).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert credential sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert credential: %w", err)
	}

	return nil
}

// SetPassword replaces the current hash, pushes the prior hash onto the
// history, and truncates the history to the supplied bound.
func (r *CredentialRepository) SetPassword(ctx context.Context, identity, hash string, changedAt time.Time, historyBound int) error {
	stmt, args, err := r.builder.
		Select("c.principal_id", "c.password_hash").
		From("authn.credentials c").
		Join("authn.principals p ON p.id = c.principal_id").
		Where(squirrel.Eq{"p.identity": identity}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build select current credential sql: %w", err)
	}

	var principalID, priorHash string
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&principalID, &priorHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("select current credential: %w", err)
	}

	stmt, args, err = r.builder.
		Insert("authn.password_history").
		Columns("id", "principal_id", "password_hash", "set_at").
		Values(uuid.NewString(), principalID, priorHash, changedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert history sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	stmt, args, err = r.builder.
		Update("authn.credentials").
		Set("password_hash", hash).
		Set("last_changed", changedAt).
		Where(squirrel.Eq{"principal_id": principalID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update credential sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("update credential: %w", err)
	}

	// Truncate history to the bound, oldest entries evicted first.
	trimSQL := `DELETE FROM authn.password_history
WHERE principal_id = $1
  AND id NOT IN (
    SELECT id FROM authn.password_history
    WHERE principal_id = $1
    ORDER BY set_at DESC
    LIMIT $2
  )`
	if _, err := r.exec.Exec(ctx, trimSQL, principalID, historyBound); err != nil {
		return fmt.Errorf("trim password history: %w", err)
	}

	return nil
}

// ListPasswordHistory returns the most recent prior hashes, newest first.
func (r *CredentialRepository) ListPasswordHistory(ctx context.Context, principalID string, limit int) ([]domain.PasswordHistoryEntry, error) {
	stmt, args, err := r.builder.
		Select("id", "principal_id", "password_hash", "set_at").
		From("authn.password_history").
		Where(squirrel.Eq{"principal_id": principalID}).
		OrderBy("set_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select history sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select password history: %w", err)
	}
	defer rows.Close()

	var entries []domain.PasswordHistoryEntry
	for rows.Next() {
		var entry domain.PasswordHistoryEntry
		if err := rows.Scan(&entry.ID, &entry.PrincipalID, &entry.Hash, &entry.SetAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	return entries, nil
}

// VerificationState reports the pending verification token for the identity.
func (r *CredentialRepository) VerificationState(ctx context.Context, identity string) (*domain.VerificationState, error) {
	stmt, args, err := r.builder.
		Select("c.verification_token", "c.verified").
		From("authn.credentials c").
		Join("authn.principals p ON p.id = c.principal_id").
		Where(squirrel.Eq{"p.identity": identity}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification sql: %w", err)
	}

	var state domain.VerificationState
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&state.Token, &state.Verified); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select verification state: %w", err)
	}

	return &state, nil
}

// SetVerification stores a pending verification token, or clears it and marks
// the identity verified when token is nil.
func (r *CredentialRepository) SetVerification(ctx context.Context, identity string, token *string) error {
	update := r.builder.
		Update("authn.credentials").
		Set("verification_token", token).
		Set("verified", token == nil).
		Where(squirrel.Expr("principal_id = (SELECT id FROM authn.principals WHERE identity = ?)", identity))

	stmt, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update verification sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.CredentialStore = (*CredentialRepository)(nil)
