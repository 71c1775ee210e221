package registry

const (
	// DefaultPageLimit is used when a request carries no usable limit
	DefaultPageLimit = 10
	// MaxPageLimit caps every page request
	MaxPageLimit = 100
)

// PageRequest is a 1-based page request
type PageRequest struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps the request: page >= 1, limit defaulted and capped at MaxPageLimit.
// A non-positive defaultLimit falls back to DefaultPageLimit.
func (p PageRequest) Normalize(defaultLimit int) PageRequest {
	if defaultLimit <= 0 {
		defaultLimit = DefaultPageLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of rows to skip, (page-1)*limit
func (p PageRequest) Offset() int {
	n := p.Normalize(DefaultPageLimit)
	return (n.Page - 1) * n.Limit
}

// Pagination describes the position of a page within the result set
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// Page is the list envelope returned by every list operation
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// NewPage wraps items fetched for req into a page envelope
func NewPage[T any](items []T, total int64, req PageRequest) *Page[T] {
	req = req.Normalize(DefaultPageLimit)
	if items == nil {
		items = []T{}
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(req.Limit) - 1) / int64(req.Limit))
	}

	return &Page[T]{
		Data: items,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    req.Page < totalPages,
			HasPrev:    req.Page > 1,
		},
	}
}

// Window returns the slice bounds [start, end) of req over n rows
func Window(n int, req PageRequest) (int, int) {
	req = req.Normalize(DefaultPageLimit)
	start := req.Offset()
	if start > n {
		start = n
	}
	end := start + req.Limit
	if end > n {
		end = n
	}
	return start, end
}
