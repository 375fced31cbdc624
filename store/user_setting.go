package store

import (
	"context"
)

// UserSettingKey identifies a per-user setting.
type UserSettingKey string

const (
	// UserSettingKeyModelID is the user's selected model id, loaded at
	// chat start and saved whenever the selection changes.
	UserSettingKeyModelID UserSettingKey = "model-id"
)

type UserSetting struct {
	UserID string
	Key    UserSettingKey
	Value  string
}

type FindUserSetting struct {
	UserID string
	Key    UserSettingKey
}

func (s *Store) UpsertUserSetting(ctx context.Context, upsert *UserSetting) (*UserSetting, error) {
	return s.driver.UpsertUserSetting(ctx, upsert)
}

func (s *Store) GetUserSetting(ctx context.Context, find *FindUserSetting) (*UserSetting, error) {
	return s.driver.GetUserSetting(ctx, find)
}
