package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Chat model related methods.
	UpsertChat(ctx context.Context, upsert *UpsertChat) (*Chat, error)
	ListChats(ctx context.Context, find *FindChat) ([]*Chat, error)
	DeleteChat(ctx context.Context, delete *DeleteChat) error

	// SystemPrompt model related methods.
	CreateSystemPrompt(ctx context.Context, create *SystemPrompt) (*SystemPrompt, error)
	ListSystemPrompts(ctx context.Context, find *FindSystemPrompt) ([]*SystemPrompt, error)
	UpdateSystemPrompt(ctx context.Context, update *UpdateSystemPrompt) (*SystemPrompt, error)
	DeleteSystemPrompt(ctx context.Context, delete *DeleteSystemPrompt) error

	// UserSetting model related methods.
	UpsertUserSetting(ctx context.Context, upsert *UserSetting) (*UserSetting, error)
	GetUserSetting(ctx context.Context, find *FindUserSetting) (*UserSetting, error)
}
