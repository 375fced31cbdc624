package store

import (
	"context"
)

type Chat struct {
	// ID is the opaque unique identifier for the chat.
	ID string

	// Standard fields
	CreatorID string
	CreatedTs int64

	// Domain specific fields
	Messages       []*Message
	SystemPromptID *string
}

type FindChat struct {
	ID        *string
	CreatorID *string
}

// UpsertChat is a full-replace write: if a record for ID exists its
// message sequence is replaced wholesale, otherwise a new record is
// created with CreatorID as owner.
type UpsertChat struct {
	ID             string
	CreatorID      string
	Messages       []*Message
	SystemPromptID *string
	CreatedTs      int64
}

type DeleteChat struct {
	ID string
}

func (s *Store) UpsertChat(ctx context.Context, upsert *UpsertChat) (*Chat, error) {
	return s.driver.UpsertChat(ctx, upsert)
}

func (s *Store) ListChats(ctx context.Context, find *FindChat) ([]*Chat, error) {
	return s.driver.ListChats(ctx, find)
}

func (s *Store) GetChat(ctx context.Context, find *FindChat) (*Chat, error) {
	chats, err := s.driver.ListChats(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(chats) == 0 {
		return nil, nil
	}
	return chats[0], nil
}

func (s *Store) DeleteChat(ctx context.Context, delete *DeleteChat) error {
	return s.driver.DeleteChat(ctx, delete)
}
