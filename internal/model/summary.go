package model

import "time"

// Summary mirrors the admin dashboard payload.
type Summary struct {
	Users            int             `json:"users"`
	Offers           int             `json:"offers"`
	Maintenance      Maintenance     `json:"maintenance"`
	RecentBroadcasts []*BroadcastLog `json:"recentBroadcasts"`
}

// Maintenance is the runtime maintenance switch.
type Maintenance struct {
	Enabled bool      `json:"enabled"`
	Since   time.Time `json:"since,omitempty"`
}
