package testutil

import (
	"path/filepath"
	"testing"

	"github.com/isdelr/quill-be/internal/database"
	"github.com/jmoiron/sqlx"
)

// SetupTestDB opens a fresh SQLite database in a temp dir with the full schema applied.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CreateTestUser inserts a user with a placeholder hash and returns its ID.
func CreateTestUser(t *testing.T, db *sqlx.DB, username string) int64 {
	t.Helper()

	res, err := db.Exec("INSERT INTO users (username, password_hash) VALUES (?, 'x')", username)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read test user id: %v", err)
	}
	return id
}

// CreateTestPost inserts a post owned by userID and returns its ID.
func CreateTestPost(t *testing.T, db *sqlx.DB, userID int64, name string) int64 {
	t.Helper()

	res, err := db.Exec("INSERT INTO posts (name, body, user_id) VALUES (?, 'body', ?)", name, userID)
	if err != nil {
		t.Fatalf("Failed to create test post: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to read test post id: %v", err)
	}
	return id
}
