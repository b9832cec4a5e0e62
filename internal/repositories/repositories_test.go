package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/catalogd/internal/models"
	"github.com/desertthunder/catalogd/internal/schema"
	"github.com/desertthunder/catalogd/internal/shared"
)

// setupTestDB creates a file-backed SQLite database with the catalog schema applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(filepath.Join(t.TempDir(), "catalog.db"), 0)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := schema.Migrate(context.Background(), db, schema.Catalog(), nil); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func createUser(t *testing.T, repo *UserRepository, handle string) *models.User {
	t.Helper()

	user := models.NewUser(handle)
	if err := repo.Create(user); err != nil {
		t.Fatalf("failed to create user %s: %v", handle, err)
	}
	return user
}

func TestUserRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		user := createUser(t, repo, "ana")

		if user.ID == "" {
			t.Error("user ID should be set after creation")
		}
	})

	t.Run("Create With Invalid Handle", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		err := repo.Create(models.NewUser("two words"))
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Create Duplicate Handle", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		createUser(t, repo, "ana")

		if err := repo.Create(models.NewUser("ana")); err == nil {
			t.Error("expected unique handle violation")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		user := createUser(t, repo, "ana")

		retrieved, err := repo.Get(user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if retrieved.Handle != "ana" {
			t.Errorf("expected handle ana, got %s", retrieved.Handle)
		}
		if !retrieved.CreatedAt.Equal(user.CreatedAt) {
			t.Errorf("expected created_at %v, got %v", user.CreatedAt, retrieved.CreatedAt)
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))

		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("GetByHandle", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		user := createUser(t, repo, "ana")

		retrieved, err := repo.GetByHandle("ana")
		if err != nil {
			t.Fatalf("failed to get user by handle: %v", err)
		}
		if retrieved.ID != user.ID {
			t.Errorf("expected ID %s, got %s", user.ID, retrieved.ID)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewUserRepository(setupTestDB(t))
		for _, handle := range []string{"ana", "ben", "cy"} {
			createUser(t, repo, handle)
		}

		users, err := repo.List()
		if err != nil {
			t.Fatalf("failed to list users: %v", err)
		}
		if len(users) != 3 {
			t.Errorf("expected 3 users, got %d", len(users))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewUserRepository(db)
		notifications := NewNotificationRepository(db)
		user := createUser(t, repo, "ana")

		if err := notifications.Append(models.NewNotification(user.ID, models.NotificationNewRelease, "hello")); err != nil {
			t.Fatalf("failed to append notification: %v", err)
		}

		if err := repo.Delete(user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if _, err := repo.Get(user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected deleted user to be gone, got %v", err)
		}

		list, err := notifications.ListForUser(user.ID, false)
		if err != nil {
			t.Fatalf("failed to list notifications: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("expected notifications to cascade, got %d", len(list))
		}

		if err := repo.Delete(user.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound on second delete, got %v", err)
		}
	})
}

func TestNotificationRepository(t *testing.T) {
	t.Run("Append And List", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, NewUserRepository(db), "ana")
		repo := NewNotificationRepository(db)

		older := models.NewNotification(user.ID, models.NotificationImportCompleted, "import done")
		older.CreatedAt = time.Now().UTC().Add(-time.Hour)
		older.Data = map[string]any{"batch": "b1", "upserted": float64(3)}
		if err := repo.Append(older); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		newer := models.NewNotification(user.ID, models.NotificationNewRelease, "new album")
		newer.Body = "Artist released Album"
		if err := repo.Append(newer); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		list, err := repo.ListForUser(user.ID, false)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(list))
		}
		if list[0].ID != newer.ID {
			t.Errorf("expected newest first, got %s", list[0].Title)
		}
		if list[1].Data["batch"] != "b1" || list[1].Data["upserted"] != float64(3) {
			t.Errorf("unexpected data round trip: %v", list[1].Data)
		}
		if list[0].Kind != models.NotificationNewRelease || list[0].Body != newer.Body {
			t.Errorf("unexpected notification: %+v", list[0])
		}
	})

	t.Run("Append For Unknown User", func(t *testing.T) {
		repo := NewNotificationRepository(setupTestDB(t))

		if err := repo.Append(models.NewNotification("ghost", models.NotificationNewRelease, "hi")); err == nil {
			t.Error("expected foreign key failure")
		}
	})

	t.Run("Append Invalid", func(t *testing.T) {
		repo := NewNotificationRepository(setupTestDB(t))

		err := repo.Append(&models.Notification{UserID: "u", Kind: models.NotificationNewRelease})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("MarkRead", func(t *testing.T) {
		db := setupTestDB(t)
		user := createUser(t, NewUserRepository(db), "ana")
		repo := NewNotificationRepository(db)

		n := models.NewNotification(user.ID, models.NotificationImportFailed, "import failed")
		if err := repo.Append(n); err != nil {
			t.Fatalf("failed to append: %v", err)
		}

		if err := repo.MarkRead(n.ID); err != nil {
			t.Fatalf("failed to mark read: %v", err)
		}

		unread, err := repo.ListForUser(user.ID, true)
		if err != nil {
			t.Fatalf("failed to list unread: %v", err)
		}
		if len(unread) != 0 {
			t.Errorf("expected no unread notifications, got %d", len(unread))
		}

		all, err := repo.ListForUser(user.ID, false)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 1 || !all[0].IsRead() {
			t.Errorf("expected one read notification, got %+v", all)
		}

		if err := repo.MarkRead("missing"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}
