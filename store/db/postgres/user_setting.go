package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MelonGO/gemini-chatbot/store"
)

func (d *DB) UpsertUserSetting(ctx context.Context, upsert *store.UserSetting) (*store.UserSetting, error) {
	stmt := `INSERT INTO user_setting (user_id, key, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.UserID, string(upsert.Key), upsert.Value); err != nil {
		return nil, fmt.Errorf("failed to upsert user setting: %w", err)
	}
	return upsert, nil
}

func (d *DB) GetUserSetting(ctx context.Context, find *store.FindUserSetting) (*store.UserSetting, error) {
	setting := &store.UserSetting{UserID: find.UserID, Key: find.Key}
	err := d.db.QueryRowContext(ctx, `SELECT value FROM user_setting WHERE user_id = $1 AND key = $2`, find.UserID, string(find.Key)).Scan(&setting.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user setting: %w", err)
	}
	return setting, nil
}
