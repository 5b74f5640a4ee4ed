package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/sphere/internal/models"
	"github.com/desertthunder/sphere/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(shared.MemoryDSN)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testCredential(externalID string) *models.Credential {
	return &models.Credential{
		ExternalUserID: externalID,
		DisplayName:    "Test User",
		Email:          externalID + "@example.com",
		AccessToken:    "access-1",
		RefreshToken:   "refresh-1",
		ExpiresAt:      time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first, err := NextSequence(ctx, db, "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NextSequence(ctx, db, "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second != first+1 {
		t.Errorf("expected consecutive sequences, got %d then %d", first, second)
	}

	t.Run("unknown table", func(t *testing.T) {
		if _, err := NextSequence(ctx, db, "nope"); err == nil {
			t.Error("expected error for missing sequence table")
		}
	})
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("GetByExternalID after Upsert", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if err := repo.Upsert(ctx, testCredential("spotify-1")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		retrieved, err := repo.GetByExternalID(ctx, "spotify-1")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.ID() == "" {
			t.Error("expected a generated id")
		}
		if retrieved.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", retrieved.Sequence())
		}
		if retrieved.LastLogin() != nil {
			t.Error("expected no last login")
		}
	})

	t.Run("GetByExternalID missing user", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if _, err := repo.GetByExternalID(ctx, "missing"); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("List filters by email", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		for _, id := range []string{"a", "b", "c"} {
			if err := repo.Upsert(ctx, testCredential(id)); err != nil {
				t.Fatalf("failed to upsert: %v", err)
			}
		}

		all, err := repo.List(ctx, nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 || all[0].ExternalUserID() != "a" {
			t.Errorf("expected 3 users ordered by sequence, got %d", len(all))
		}

		some, err := repo.List(ctx, map[string]any{"email": "b@example.com"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(some) != 1 || some[0].ExternalUserID() != "b" {
			t.Errorf("expected only b, got %d users", len(some))
		}
	})

	t.Run("TouchLogin", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if err := repo.Upsert(ctx, testCredential("u1")); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		at := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
		if err := repo.TouchLogin(ctx, "u1", at); err != nil {
			t.Fatalf("failed to touch login: %v", err)
		}

		user, err := repo.GetByExternalID(ctx, "u1")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if user.LastLogin() == nil || !user.LastLogin().Equal(at) {
			t.Errorf("expected last login %v, got %v", at, user.LastLogin())
		}

		if err := repo.TouchLogin(ctx, "ghost", at); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})
}

func TestCredentialStore(t *testing.T) {
	ctx := context.Background()

	t.Run("FindByExternalID missing", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if _, err := repo.FindByExternalID(ctx, "nobody"); !errors.Is(err, shared.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("Upsert inserts then overwrites", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		cred := testCredential("u1")

		if err := repo.Upsert(ctx, cred); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		updated := *cred
		updated.AccessToken = "access-2"
		updated.RefreshToken = "refresh-2"
		updated.ExpiresAt = cred.ExpiresAt.Add(time.Hour)
		if err := repo.Upsert(ctx, &updated); err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		got, err := repo.FindByExternalID(ctx, "u1")
		if err != nil {
			t.Fatalf("failed to find: %v", err)
		}
		if got.AccessToken != "access-2" || got.RefreshToken != "refresh-2" {
			t.Errorf("tokens not overwritten: %+v", got)
		}
		if !got.ExpiresAt.Equal(updated.ExpiresAt) {
			t.Errorf("expected expiry %v, got %v", updated.ExpiresAt, got.ExpiresAt)
		}

		users, _ := repo.List(ctx, nil)
		if len(users) != 1 {
			t.Errorf("expected a single account, got %d", len(users))
		}
	})

	t.Run("Upsert keeps refresh token and display fields when omitted", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if err := repo.Upsert(ctx, testCredential("u1")); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}

		err := repo.Upsert(ctx, &models.Credential{
			ExternalUserID: "u1",
			AccessToken:    "access-2",
			ExpiresAt:      time.Now().Add(2 * time.Hour),
		})
		if err != nil {
			t.Fatalf("failed to update: %v", err)
		}

		got, err := repo.FindByExternalID(ctx, "u1")
		if err != nil {
			t.Fatalf("failed to find: %v", err)
		}
		if got.RefreshToken != "refresh-1" {
			t.Errorf("expected refresh token to be retained, got %q", got.RefreshToken)
		}
		if got.DisplayName != "Test User" || got.Email != "u1@example.com" {
			t.Errorf("expected display fields to be retained, got %+v", got)
		}
		if got.AccessToken != "access-2" {
			t.Errorf("expected new access token, got %q", got.AccessToken)
		}
	})

	t.Run("Upsert requires external id", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		if err := repo.Upsert(ctx, &models.Credential{}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("concurrent Upsert for different ids", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for i := range 10 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- repo.Upsert(ctx, testCredential(fmt.Sprintf("user-%d", i)))
			}(i)
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Fatalf("upsert failed: %v", err)
			}
		}

		users, err := repo.List(ctx, nil)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(users) != 10 {
			t.Errorf("expected 10 accounts, got %d", len(users))
		}
	})
}
