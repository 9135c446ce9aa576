package model

// BroadcastJob is one admin message fanned out to every known user.
type BroadcastJob struct {
	ID       string `json:"id"`
	SenderID int64  `json:"senderId"`
	Body     string `json:"body"`
}

// BroadcastReport summarises a finished job. Delivered equals
// Recipients minus Removed minus Failed.
type BroadcastReport struct {
	JobID      string  `json:"jobId"`
	Recipients int     `json:"recipients"`
	Delivered  int     `json:"delivered"`
	Removed    []int64 `json:"removed,omitempty"`
	Failed     []int64 `json:"failed,omitempty"`
}

// BroadcastRequest is the admin API payload.
type BroadcastRequest struct {
	Message string `json:"message"`
}
