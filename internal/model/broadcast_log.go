package model

import "time"

// BroadcastLog tracks each broadcast job.
type BroadcastLog struct {
	ID         uint64    `json:"id"`
	JobID      string    `json:"jobId"`
	SenderID   int64     `json:"senderId"`
	Body       string    `json:"body"`
	Recipients int       `json:"recipients"`
	Delivered  int       `json:"delivered"`
	Removed    int       `json:"removed"`
	Failed     int       `json:"failed"`
	CreatedAt  time.Time `json:"createdAt"`
}

// BroadcastLogFilter describes query parameters for log searching.
type BroadcastLogFilter struct {
	SenderID  int64
	BeginTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}
