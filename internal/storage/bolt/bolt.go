package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/storage"
	bolt "go.etcd.io/bbolt"
)

var _ storage.Store = (*Store)(nil)

var (
	bucketUsers        = []byte("users")
	bucketOffers       = []byte("offers")
	bucketSettings     = []byte("settings")
	bucketBroadcastLog = []byte("broadcast_logs")

	keyMaintenance = []byte("maintenance")
)

// Store is a BoltDB-backed Store implementation.
type Store struct {
	db *bolt.DB
}

// New initialises the Bolt store.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketOffers, bucketSettings, bucketBroadcastLog} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes underlying Bolt DB.
func (s *Store) Close() error {
	return s.db.Close()
}

// AddUser stores the user if its id is unknown.
func (s *Store) AddUser(ctx context.Context, user *model.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketUsers)
		key := userKey(user.ID)
		if bkt.Get(key) != nil {
			return nil
		}
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}
		payload, err := json.Marshal(user)
		if err != nil {
			return err
		}
		created = true
		return bkt.Put(key, payload)
	})
	return created, err
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user *model.User
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketUsers).Get(userKey(id))
		if raw == nil {
			return storage.ErrNotFound
		}
		user = &model.User{}
		return json.Unmarshal(raw, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []*model.User
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var user model.User
			if err := json.Unmarshal(v, &user); err != nil {
				return err
			}
			users = append(users, &user)
			return nil
		})
	})
	return users, err
}

// RemoveUser deletes a user record.
func (s *Store) RemoveUser(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketUsers)
		key := userKey(id)
		if bkt.Get(key) == nil {
			return storage.ErrNotFound
		}
		return bkt.Delete(key)
	})
}

// ReplaceOffers drops the stored catalog and writes offers keyed by position.
func (s *Store) ReplaceOffers(ctx context.Context, offers []*model.Offer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(offers))
	for _, offer := range offers {
		if _, dup := seen[offer.ID]; dup {
			return fmt.Errorf("%w: %d", storage.ErrDuplicateOffer, offer.ID)
		}
		seen[offer.ID] = struct{}{}
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketOffers); err != nil {
			return err
		}
		bkt, err := tx.CreateBucket(bucketOffers)
		if err != nil {
			return err
		}
		for i, offer := range offers {
			payload, err := json.Marshal(offer)
			if err != nil {
				return err
			}
			if err := bkt.Put(seqKey(uint64(i)), payload); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListOffers returns the catalog in load order.
func (s *Store) ListOffers(ctx context.Context) ([]*model.Offer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var offers []*model.Offer
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOffers).ForEach(func(_, v []byte) error {
			var offer model.Offer
			if err := json.Unmarshal(v, &offer); err != nil {
				return err
			}
			offers = append(offers, &offer)
			return nil
		})
	})
	return offers, err
}

// GetMaintenance returns the stored switch, zero value if never set.
func (s *Store) GetMaintenance(ctx context.Context) (model.Maintenance, error) {
	var m model.Maintenance
	if err := ctx.Err(); err != nil {
		return m, err
	}
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSettings).Get(keyMaintenance)
		if raw == nil {
			return nil
		}
		return json.Unmarshal(raw, &m)
	})
	return m, err
}

// SetMaintenance persists the switch.
func (s *Store) SetMaintenance(ctx context.Context, m model.Maintenance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketSettings).Put(keyMaintenance, payload)
	})
}

// AppendBroadcastLog stores a broadcast log entry.
func (s *Store) AppendBroadcastLog(ctx context.Context, log *model.BroadcastLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketBroadcastLog)
		id, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		log.ID = id
		payload, err := json.Marshal(log)
		if err != nil {
			return err
		}
		return bkt.Put(seqKey(id), payload)
	})
}

// ListBroadcastLogs returns all broadcast logs.
func (s *Store) ListBroadcastLogs(ctx context.Context) ([]*model.BroadcastLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var logs []*model.BroadcastLog
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBroadcastLog).ForEach(func(_, v []byte) error {
			var log model.BroadcastLog
			if err := json.Unmarshal(v, &log); err != nil {
				return err
			}
			logs = append(logs, &log)
			return nil
		})
	})
	return logs, err
}

func userKey(id int64) []byte {
	return []byte(strconv.FormatInt(id, 10))
}

func seqKey(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}
