package store

import (
	"context"

	"github.com/pkg/errors"
)

type User struct {
	ID string

	// Standard fields
	CreatedTs int64

	// Domain specific fields
	Email        string
	PasswordHash string
}

type FindUser struct {
	ID    *string
	Email *string
}

func (s *Store) CreateUser(ctx context.Context, create *User) (*User, error) {
	if create.Email == "" {
		return nil, errors.New("email is required")
	}
	return s.driver.CreateUser(ctx, create)
}

func (s *Store) GetUser(ctx context.Context, find *FindUser) (*User, error) {
	users, err := s.driver.ListUsers(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return users[0], nil
}
