package storage

import (
	"context"

	"github.com/bark-labs/offerbot/internal/model"
)

// Store abstracts bot persistence: the user directory, the offer catalog,
// the maintenance switch and the broadcast log.
type Store interface {
	// AddUser inserts the user unless the id is already known and reports
	// whether a record was created. Existing records are never modified.
	AddUser(ctx context.Context, user *model.User) (bool, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	RemoveUser(ctx context.Context, id int64) error

	// ReplaceOffers swaps the whole catalog, preserving slice order.
	ReplaceOffers(ctx context.Context, offers []*model.Offer) error
	ListOffers(ctx context.Context) ([]*model.Offer, error)

	GetMaintenance(ctx context.Context) (model.Maintenance, error)
	SetMaintenance(ctx context.Context, m model.Maintenance) error

	AppendBroadcastLog(ctx context.Context, log *model.BroadcastLog) error
	ListBroadcastLogs(ctx context.Context) ([]*model.BroadcastLog, error)

	Close() error
}
