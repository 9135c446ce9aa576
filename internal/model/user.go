package model

import "time"

// User is a known chat recipient. Records are created on the first inbound
// event from a new id and only ever removed afterwards.
type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	Username  string    `json:"username,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
