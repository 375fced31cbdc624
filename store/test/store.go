package test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/MelonGO/gemini-chatbot/internal/profile"
	"github.com/MelonGO/gemini-chatbot/store"
	"github.com/MelonGO/gemini-chatbot/store/db/sqlite"
)

// NewTestingStore creates a migrated store backed by a throwaway SQLite
// database under the test's temp directory.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	dataDir := t.TempDir()
	testProfile := &profile.Profile{
		Mode:   "dev",
		Driver: "sqlite",
		Data:   dataDir,
		DSN:    filepath.Join(dataDir, "chatbot_test.db"),
		Secret: "testing",
	}

	driver, err := sqlite.NewDB(testProfile)
	if err != nil {
		t.Fatalf("failed to create testing db driver: %v", err)
	}
	if err := driver.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate testing db: %v", err)
	}

	ts := store.New(driver, testProfile)
	t.Cleanup(func() {
		if err := ts.Close(); err != nil {
			t.Logf("failed to close testing store: %v", err)
		}
	})
	return ts
}

// CreateTestingUser creates a user with a unique email.
func CreateTestingUser(ctx context.Context, ts *store.Store) (*store.User, error) {
	return ts.CreateUser(ctx, &store.User{
		ID:           shortuuid.New(),
		CreatedTs:    time.Now().Unix(),
		Email:        fmt.Sprintf("%s@example.com", shortuuid.New()),
		PasswordHash: "not-a-real-hash",
	})
}
