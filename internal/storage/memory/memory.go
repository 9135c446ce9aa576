// Package memory is an in-process Store used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps every record in maps guarded by a mutex.
type Store struct {
	mu          sync.Mutex
	users       map[int64]model.User
	offers      []model.Offer
	maintenance model.Maintenance
	logs        []model.BroadcastLog
}

// New returns an empty store.
func New() *Store {
	return &Store{users: make(map[int64]model.User)}
}

func (s *Store) AddUser(ctx context.Context, user *model.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.ID] = *user
	return true, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]*model.User, 0, len(s.users))
	for _, u := range s.users {
		copied := u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *Store) RemoveUser(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *Store) ReplaceOffers(ctx context.Context, offers []*model.Offer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(offers))
	next := make([]model.Offer, 0, len(offers))
	for _, o := range offers {
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("%w: %d", storage.ErrDuplicateOffer, o.ID)
		}
		seen[o.ID] = struct{}{}
		next = append(next, *o)
	}
	s.mu.Lock()
	s.offers = next
	s.mu.Unlock()
	return nil
}

func (s *Store) ListOffers(ctx context.Context) ([]*model.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	offers := make([]*model.Offer, 0, len(s.offers))
	for _, o := range s.offers {
		copied := o
		offers = append(offers, &copied)
	}
	return offers, nil
}

func (s *Store) GetMaintenance(ctx context.Context) (model.Maintenance, error) {
	if err := ctx.Err(); err != nil {
		return model.Maintenance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maintenance, nil
}

func (s *Store) SetMaintenance(ctx context.Context, m model.Maintenance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.maintenance = m
	s.mu.Unlock()
	return nil
}

func (s *Store) AppendBroadcastLog(ctx context.Context, log *model.BroadcastLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	log.ID = uint64(len(s.logs) + 1)
	s.logs = append(s.logs, *log)
	return nil
}

func (s *Store) ListBroadcastLogs(ctx context.Context) ([]*model.BroadcastLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	logs := make([]*model.BroadcastLog, 0, len(s.logs))
	for _, l := range s.logs {
		copied := l
		logs = append(logs, &copied)
	}
	return logs, nil
}

func (s *Store) Close() error { return nil }
