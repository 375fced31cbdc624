package store

import (
	"context"

	"github.com/pkg/errors"
)

type SystemPrompt struct {
	// ID is the opaque unique identifier for the prompt.
	ID string

	// Standard fields
	CreatorID string
	CreatedTs int64

	// Domain specific fields
	Name      string
	Content   string
	IsDefault bool
}

type FindSystemPrompt struct {
	ID        *string
	CreatorID *string
	IsDefault *bool
}

type UpdateSystemPrompt struct {
	ID      string
	Name    *string
	Content *string
	// Setting IsDefault to true atomically clears the flag on every
	// other prompt owned by the same creator.
	IsDefault *bool
}

type DeleteSystemPrompt struct {
	ID string
}

func (s *Store) CreateSystemPrompt(ctx context.Context, create *SystemPrompt) (*SystemPrompt, error) {
	if create.Name == "" || create.Content == "" {
		return nil, errors.New("name and content are required")
	}
	return s.driver.CreateSystemPrompt(ctx, create)
}

func (s *Store) ListSystemPrompts(ctx context.Context, find *FindSystemPrompt) ([]*SystemPrompt, error) {
	return s.driver.ListSystemPrompts(ctx, find)
}

func (s *Store) GetSystemPrompt(ctx context.Context, find *FindSystemPrompt) (*SystemPrompt, error) {
	prompts, err := s.driver.ListSystemPrompts(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 {
		return nil, nil
	}
	return prompts[0], nil
}

func (s *Store) UpdateSystemPrompt(ctx context.Context, update *UpdateSystemPrompt) (*SystemPrompt, error) {
	return s.driver.UpdateSystemPrompt(ctx, update)
}

// DeleteSystemPrompt removes the prompt. Chats referencing it keep
// existing with the reference cleared, not cascaded.
func (s *Store) DeleteSystemPrompt(ctx context.Context, delete *DeleteSystemPrompt) error {
	return s.driver.DeleteSystemPrompt(ctx, delete)
}
