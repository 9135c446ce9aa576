package service

import (
	"context"
	"time"

	"github.com/bark-labs/offerbot/internal/model"
	"github.com/bark-labs/offerbot/internal/storage"
)

// MaintenanceService owns the persisted maintenance switch.
type MaintenanceService struct {
	store storage.Store
	now   func() time.Time
}

// NewMaintenanceService constructs MaintenanceService.
func NewMaintenanceService(store storage.Store) *MaintenanceService {
	return &MaintenanceService{store: store, now: time.Now}
}

// Init seeds the switch from config unless a value was already stored.
func (s *MaintenanceService) Init(ctx context.Context, enabled bool, since string) error {
	current, err := s.store.GetMaintenance(ctx)
	if err != nil {
		return err
	}
	if current.Enabled || !current.Since.IsZero() || !enabled {
		return nil
	}
	m := model.Maintenance{Enabled: true, Since: s.now().UTC()}
	if t, err := time.Parse(time.RFC3339, since); err == nil {
		m.Since = t.UTC()
	}
	return s.store.SetMaintenance(ctx, m)
}

// Status returns the current switch.
func (s *MaintenanceService) Status(ctx context.Context) (model.Maintenance, error) {
	return s.store.GetMaintenance(ctx)
}

// Set turns maintenance on or off. Turning it on records the start time;
// repeating the current state is a no-op.
func (s *MaintenanceService) Set(ctx context.Context, enabled bool) (model.Maintenance, error) {
	current, err := s.store.GetMaintenance(ctx)
	if err != nil {
		return current, err
	}
	if current.Enabled == enabled {
		return current, nil
	}
	next := model.Maintenance{Enabled: enabled}
	if enabled {
		next.Since = s.now().UTC()
	}
	if err := s.store.SetMaintenance(ctx, next); err != nil {
		return current, err
	}
	return next, nil
}
