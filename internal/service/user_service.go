package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/storage"
)

// UserService is the directory of chat users that receive broadcasts.
type UserService struct {
	store storage.Store
}

// NewUserService constructs UserService.
func NewUserService(store storage.Store) *UserService {
	return &UserService{store: store}
}

// Ensure records the user on first contact. Known ids are left untouched.
func (s *UserService) Ensure(ctx context.Context, id int64, firstName, username string) (bool, error) {
	if id == 0 {
		return false, fmt.Errorf("user id is required")
	}
	created, err := s.store.AddUser(ctx, &model.User{
		ID:        id,
		FirstName: strings.TrimSpace(firstName),
		Username:  strings.TrimSpace(username),
	})
	if err != nil {
		return false, fmt.Errorf("add user %d: %w", id, err)
	}
	if created {
		log.Printf("new user %d (%s)", id, firstName)
	}
	return created, nil
}

// List returns every known user ordered by id.
func (s *UserService) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Get returns one user or storage.ErrNotFound.
func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	return s.store.GetUser(ctx, id)
}

// Remove drops a user. Removing an unknown id is not an error.
func (s *UserService) Remove(ctx context.Context, id int64) error {
	if err := s.store.RemoveUser(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("remove user %d: %w", id, err)
	}
	return nil
}

// Count returns the number of known users.
func (s *UserService) Count(ctx context.Context) (int, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}
