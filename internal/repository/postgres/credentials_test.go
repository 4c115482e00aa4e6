package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/arklim/platform-authn/internal/repository"
)

func TestCredentialRepository_LookupPrincipal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCredentialRepository(mock)

	rows := pgxmock.NewRows([]string{
		"id", "identity", "display_name", "first_name", "last_name", "is_active", "is_site_admin",
	}).AddRow(
		"principal-1", "alice@example.com", "alice", "Alice", "Wonder", true, false,
	)

	mock.ExpectQuery(`SELECT id, identity, display_name, first_name, last_name, is_active, is_site_admin FROM authn\.principals`).
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	principal, err := repo.LookupPrincipal(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("LookupPrincipal returned error: %v", err)
	}
	if principal.ID != "principal-1" {
		t.Fatalf("unexpected principal id: %s", principal.ID)
	}
	if !principal.Active {
		t.Fatal("expected active principal")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCredentialRepository_LookupPrincipalNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCredentialRepository(mock)

	mock.ExpectQuery(`SELECT id, identity, display_name, first_name, last_name, is_active, is_site_admin FROM authn\.principals`).
		WithArgs("ghost@example.com").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "identity", "display_name", "first_name", "last_name", "is_active", "is_site_admin",
		}))

	_, err = repo.LookupPrincipal(context.Background(), "ghost@example.com")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCredentialRepository_LookupHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCredentialRepository(mock)

	mock.ExpectQuery(`SELECT c\.password_hash FROM authn\.credentials c JOIN authn\.principals p`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"password_hash"}).AddRow("argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"))

	hash, err := repo.LookupHash(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("LookupHash returned error: %v", err)
	}
	if hash == "" {
		t.Fatal("expected a hash")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCredentialRepository_SetPassword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCredentialRepository(mock)
	changedAt := time.Now().UTC()

	mock.ExpectQuery(`SELECT c\.principal_id, c\.password_hash FROM authn\.credentials c`).
		WithArgs("alice@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"principal_id", "password_hash"}).AddRow("principal-1", "old-hash"))

	mock.ExpectExec(`INSERT INTO authn\.password_history`).
		WithArgs(pgxmock.AnyArg(), "principal-1", "old-hash", changedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec(`UPDATE authn\.credentials SET password_hash`).
		WithArgs("new-hash", changedAt, "principal-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectExec(`DELETE FROM authn\.password_history`).
		WithArgs("principal-1", 10).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.SetPassword(context.Background(), "alice@example.com", "new-hash", changedAt, 10); err != nil {
		t.Fatalf("SetPassword returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCredentialRepository_ListPasswordHistory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCredentialRepository(mock)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "principal_id", "password_hash", "set_at"}).
		AddRow("h2", "principal-1", "hash-2", now).
		AddRow("h1", "principal-1", "hash-1", now.Add(-time.Hour))

	mock.ExpectQuery(`SELECT id, principal_id, password_hash, set_at FROM authn\.password_history`).
		WithArgs("principal-1").
		WillReturnRows(rows)

	entries, err := repo.ListPasswordHistory(context.Background(), "principal-1", 10)
	if err != nil {
		t.Fatalf("ListPasswordHistory returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Hash != "hash-2" {
		t.Fatalf("expected newest first, got %s", entries[0].Hash)
	}
}

func TestCredentialRepository_SetVerification(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewCredentialRepository(mock)

	token := "verification-token"
	mock.ExpectExec(`UPDATE authn\.credentials SET verification_token`).
		WithArgs(&token, false, "alice@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetVerification(context.Background(), "alice@example.com", &token); err != nil {
		t.Fatalf("SetVerification returned error: %v", err)
	}

	mock.ExpectExec(`UPDATE authn\.credentials SET verification_token`).
		WithArgs(pgxmock.AnyArg(), true, "ghost@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.SetVerification(context.Background(), "ghost@example.com", nil)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown identity, got %v", err)
	}
}
