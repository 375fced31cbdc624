package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/MelonGO/gemini-chatbot/store"
)

func (d *DB) UpsertChat(ctx context.Context, upsert *store.UpsertChat) (*store.Chat, error) {
	messages, err := store.MarshalMessages(upsert.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat messages: %w", err)
	}

	fields := []string{"id", "creator_id", "messages", "system_prompt_id", "created_ts"}
	args := []any{upsert.ID, upsert.CreatorID, messages, upsert.SystemPromptID, upsert.CreatedTs}

	// Full-replace write: an existing record gets its message sequence
	// replaced wholesale, owner and creation time stay untouched.
	stmt := `INSERT INTO chat (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)
		ON CONFLICT (id) DO UPDATE SET messages = EXCLUDED.messages`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to upsert chat: %w", err)
	}

	chats, err := d.ListChats(ctx, &store.FindChat{ID: &upsert.ID})
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, fmt.Errorf("chat not found after upsert")
	}
	return chats[0], nil
}

func (d *DB) ListChats(ctx context.Context, find *store.FindChat) ([]*store.Chat, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}

	query := `SELECT id, creator_id, messages, system_prompt_id, created_ts FROM chat WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Chat, 0)
	for rows.Next() {
		c := &store.Chat{}
		var messages string
		if err := rows.Scan(&c.ID, &c.CreatorID, &messages, &c.SystemPromptID, &c.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		if c.Messages, err = store.UnmarshalMessages(messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat messages: %w", err)
		}
		list = append(list, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chats: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteChat(ctx context.Context, delete *store.DeleteChat) error {
	result, err := d.db.ExecContext(ctx, `DELETE FROM chat WHERE id = `+placeholder(1), delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete chat: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("chat not found")
	}

	return nil
}
