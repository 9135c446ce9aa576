package model

// BroadcastLogPage is the paginated payload of the admin log listing.
type BroadcastLogPage struct {
	Data     []*BroadcastLog `json:"data"`
	Total    int             `json:"total"`
	Pages    int             `json:"pages"`
	PageNum  int             `json:"pageNum"`
	PageSize int             `json:"pageSize"`
}
