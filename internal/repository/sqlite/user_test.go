package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/jobmatch-auth/internal/apperror"
	"github.com/sakif/jobmatch-auth/internal/model"
	"github.com/sakif/jobmatch-auth/internal/repository"
)

// newTestDB returns a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts user under key and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, user *model.User, key repository.IdentityKey) *model.User {
	t.Helper()
	if err := db.CreateIfAbsent(context.Background(), user, key); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreateIfAbsent(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Name: "Ada", Role: model.RoleStudent, Email: "ada@example.com"}
	err := db.CreateIfAbsent(context.Background(), user, repository.NameRoleKey("Ada", model.RoleStudent))
	if err != nil {
		t.Fatalf("CreateIfAbsent() error = %v", err)
	}

	if user.ID == "" {
		t.Error("CreateIfAbsent() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("CreateIfAbsent() did not set timestamps")
	}

	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Name != "Ada" || got.Email != "ada@example.com" || got.Role != model.RoleStudent {
		t.Errorf("GetUserByID() = %+v, want the created user", got)
	}
	if got.GoogleID != "" || got.ExternalID != "" || got.Picture != "" {
		t.Errorf("absent fields should read back empty, got %+v", got)
	}
}

func TestCreateIfAbsent_Conflict(t *testing.T) {
	tests := []struct {
		name     string
		existing *model.User
		existKey repository.IdentityKey
		key      repository.IdentityKey
	}{
		{
			name:     "same name and role",
			existing: &model.User{Name: "Ada", Role: model.RoleStudent},
			existKey: repository.NameRoleKey("Ada", model.RoleStudent),
			key:      repository.NameRoleKey("Ada", model.RoleStudent),
		},
		{
			name:     "same google subject",
			existing: &model.User{Name: "Ada", Role: model.RoleStudent, GoogleID: "g-1"},
			existKey: repository.GoogleKey("g-1", ""),
			key:      repository.GoogleKey("g-1", "other@example.com"),
		},
		{
			name:     "same email under google key",
			existing: &model.User{Name: "Ada", Role: model.RoleStudent, Email: "ada@example.com"},
			existKey: repository.NameRoleKey("Ada", model.RoleStudent),
			key:      repository.GoogleKey("g-2", "ada@example.com"),
		},
		{
			name:     "same external id",
			existing: &model.User{Name: "Ada", Role: model.RoleStudent, ExternalID: "sb-1"},
			existKey: repository.ExternalKey("sb-1"),
			key:      repository.ExternalKey("sb-1"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			createTestUser(t, db, tt.existing, tt.existKey)

			dup := &model.User{Name: "Someone", Role: model.RoleStudent}
			err := db.CreateIfAbsent(context.Background(), dup, tt.key)
			if !errors.Is(err, apperror.ErrConflict) {
				t.Fatalf("CreateIfAbsent() error = %v, want ErrConflict", err)
			}
			if dup.ID != "" {
				t.Errorf("a rejected create should not assign an ID, got %q", dup.ID)
			}
		})
	}
}

func TestCreateIfAbsent_KeysAreIsolated(t *testing.T) {
	db := newTestDB(t)

	// Same name, different role: two distinct users.
	createTestUser(t, db, &model.User{Name: "Sam", Role: model.RoleStudent}, repository.NameRoleKey("Sam", model.RoleStudent))
	createTestUser(t, db, &model.User{Name: "Sam", Role: model.RoleEmployer}, repository.NameRoleKey("Sam", model.RoleEmployer))

	// An external key never matches a record that lacks an external id.
	createTestUser(t, db, &model.User{Name: "Sam", Role: model.RoleStudent, ExternalID: "sb-9"}, repository.ExternalKey("sb-9"))

	// Records without a google id or email do not match an empty email.
	createTestUser(t, db, &model.User{Name: "G", Role: model.RoleStudent, GoogleID: "g-9"}, repository.GoogleKey("g-9", ""))
}

func TestCreateIfAbsent_Concurrent(t *testing.T) {
	db := newTestDB(t)
	const workers = 16

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &model.User{Name: "Race", Role: model.RoleEmployer}
			err := db.CreateIfAbsent(context.Background(), u, repository.NameRoleKey("Race", model.RoleEmployer))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperror.ErrConflict):
				conflicts++
			default:
				t.Errorf("CreateIfAbsent() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d, want exactly 1", created)
	}
	if conflicts != workers-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, workers-1)
	}
}

// =========================================================================
// FIND
// =========================================================================

func TestFind_GooglePrefersSubjectOverEmail(t *testing.T) {
	db := newTestDB(t)
	byEmail := createTestUser(t, db,
		&model.User{Name: "Email Owner", Role: model.RoleStudent, Email: "ada@example.com"},
		repository.NameRoleKey("Email Owner", model.RoleStudent))
	bySubject := createTestUser(t, db,
		&model.User{Name: "Subject Owner", Role: model.RoleStudent, GoogleID: "g-1"},
		repository.GoogleKey("g-1", ""))

	got, err := db.Find(context.Background(), repository.GoogleKey("g-1", "ada@example.com"))
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	if got.ID != bySubject.ID {
		t.Errorf("Find() = %s, want the google subject owner %s", got.ID, bySubject.ID)
	}

	got, err = db.Find(context.Background(), repository.GoogleKey("g-unknown", "ada@example.com"))
	if err != nil {
		t.Fatalf("Find() by email fallback error = %v", err)
	}
	if got.ID != byEmail.ID {
		t.Errorf("Find() = %s, want the email owner %s", got.ID, byEmail.ID)
	}
}

func TestFind_NotFound(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, &model.User{Name: "Ada", Role: model.RoleStudent}, repository.NameRoleKey("Ada", model.RoleStudent))

	keys := []repository.IdentityKey{
		repository.NameRoleKey("Ada", model.RoleEmployer),
		repository.GoogleKey("g-1", ""),
		repository.GoogleKey("g-1", "nobody@example.com"),
		repository.ExternalKey("sb-1"),
	}
	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			_, err := db.Find(context.Background(), key)
			if !errors.Is(err, apperror.ErrNotFound) {
				t.Errorf("Find() error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "does-not-exist")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetByEmail_Empty(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, &model.User{Name: "NoEmail", Role: model.RoleStudent}, repository.NameRoleKey("NoEmail", model.RoleStudent))

	_, err := db.GetByEmail(context.Background(), "")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail(\"\") error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// UPDATE
// =========================================================================

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db,
		&model.User{Name: "Ada", Role: model.RoleStudent, Email: "old@example.com"},
		repository.NameRoleKey("Ada", model.RoleStudent))

	user.Name = "Ada L."
	user.Email = "new@example.com"
	user.GoogleID = "g-1"
	user.Picture = "https://example.com/a.png"
	user.Role = model.RoleEmployer // ignored by Update
	if err := db.Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Name != "Ada L." || got.Email != "new@example.com" {
		t.Errorf("name/email not updated: %+v", got)
	}
	if got.GoogleID != "g-1" || got.Picture != "https://example.com/a.png" {
		t.Errorf("backfill not applied: %+v", got)
	}
	if got.Role != model.RoleStudent {
		t.Errorf("Role = %s, Update must not change the role", got.Role)
	}
	if user.Role != model.RoleStudent {
		t.Errorf("Update() should refresh the caller's copy, Role = %s", user.Role)
	}
}

func TestUpdate_WriteOnceFields(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db,
		&model.User{
			Name:       "Ada",
			Role:       model.RoleStudent,
			GoogleID:   "g-1",
			ExternalID: "sb-1",
			Picture:    "https://example.com/first.png",
		},
		repository.GoogleKey("g-1", ""))

	user.GoogleID = "g-2"
	user.ExternalID = "sb-2"
	user.Picture = "https://example.com/second.png"
	if err := db.Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if user.GoogleID != "g-1" || user.ExternalID != "sb-1" || user.Picture != "https://example.com/first.png" {
		t.Errorf("write-once fields were replaced: %+v", user)
	}

	// Clearing is not possible either.
	user.GoogleID, user.ExternalID, user.Picture = "", "", ""
	if err := db.Update(context.Background(), user); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if user.GoogleID != "g-1" || user.ExternalID != "sb-1" || user.Picture == "" {
		t.Errorf("write-once fields were cleared: %+v", user)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(context.Background(), &model.User{ID: "missing", Name: "X", Role: model.RoleStudent})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
