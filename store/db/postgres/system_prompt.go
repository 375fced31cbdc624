package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/MelonGO/gemini-chatbot/store"
)

func (d *DB) CreateSystemPrompt(ctx context.Context, create *store.SystemPrompt) (*store.SystemPrompt, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// At most one default prompt per creator at any committed point.
	if create.IsDefault {
		if _, err := tx.ExecContext(ctx, `UPDATE system_prompt SET is_default = FALSE WHERE creator_id = $1`, create.CreatorID); err != nil {
			return nil, fmt.Errorf("failed to clear default prompts: %w", err)
		}
	}

	fields := []string{"id", "creator_id", "name", "content", "is_default", "created_ts"}
	args := []any{create.ID, create.CreatorID, create.Name, create.Content, create.IsDefault, create.CreatedTs}
	stmt := `INSERT INTO system_prompt (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(args)) + `)`
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("failed to create system prompt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return create, nil
}

func (d *DB) ListSystemPrompts(ctx context.Context, find *store.FindSystemPrompt) ([]*store.SystemPrompt, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}
	if find.IsDefault != nil {
		where, args = append(where, "is_default = "+placeholder(len(args)+1)), append(args, *find.IsDefault)
	}

	query := `SELECT id, creator_id, name, content, is_default, created_ts FROM system_prompt WHERE ` + strings.Join(where, " AND ") + ` ORDER BY created_ts DESC`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list system prompts: %w", err)
	}
	defer rows.Close()

	list := make([]*store.SystemPrompt, 0)
	for rows.Next() {
		p := &store.SystemPrompt{}
		if err := rows.Scan(&p.ID, &p.CreatorID, &p.Name, &p.Content, &p.IsDefault, &p.CreatedTs); err != nil {
			return nil, fmt.Errorf("failed to scan system prompt: %w", err)
		}
		list = append(list, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate system prompts: %w", err)
	}

	return list, nil
}

func (d *DB) UpdateSystemPrompt(ctx context.Context, update *store.UpdateSystemPrompt) (*store.SystemPrompt, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if update.IsDefault != nil && *update.IsDefault {
		// Clear the flag on every other prompt of the same creator inside
		// the same transaction, so two prompts are never default together.
		if _, err := tx.ExecContext(ctx, `UPDATE system_prompt SET is_default = FALSE WHERE creator_id = (SELECT creator_id FROM system_prompt WHERE id = $1)`, update.ID); err != nil {
			return nil, fmt.Errorf("failed to clear default prompts: %w", err)
		}
	}

	set, args := []string{}, []any{}
	if update.Name != nil {
		set, args = append(set, "name = "+placeholder(len(args)+1)), append(args, *update.Name)
	}
	if update.Content != nil {
		set, args = append(set, "content = "+placeholder(len(args)+1)), append(args, *update.Content)
	}
	if update.IsDefault != nil {
		set, args = append(set, "is_default = "+placeholder(len(args)+1)), append(args, *update.IsDefault)
	}

	if len(set) == 0 {
		return nil, fmt.Errorf("no fields to update")
	}

	args = append(args, update.ID)
	stmt := `UPDATE system_prompt SET ` + strings.Join(set, ", ") + ` WHERE id = ` + placeholder(len(args)) + ` RETURNING id, creator_id, name, content, is_default, created_ts`
	result := &store.SystemPrompt{}
	err = tx.QueryRowContext(ctx, stmt, args...).Scan(
		&result.ID, &result.CreatorID, &result.Name, &result.Content, &result.IsDefault, &result.CreatedTs,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("system prompt not found")
		}
		return nil, fmt.Errorf("failed to update system prompt: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return result, nil
}

func (d *DB) DeleteSystemPrompt(ctx context.Context, delete *store.DeleteSystemPrompt) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Clear references first: chats survive prompt deletion.
	if _, err := tx.ExecContext(ctx, `UPDATE chat SET system_prompt_id = NULL WHERE system_prompt_id = $1`, delete.ID); err != nil {
		return fmt.Errorf("failed to clear chat references: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM system_prompt WHERE id = $1`, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete system prompt: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("system prompt not found")
	}

	return tx.Commit()
}
