package pagination

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any list query can request.
	MaxLimit = 100
)

// Params holds page/limit pagination inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// NormalizePage clamps the page number to 1-based values.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Normalize returns a copy of the params with page and limit clamped.
func (p Params) Normalize() Params {
	return Params{Page: NormalizePage(p.Page), Limit: NormalizeLimit(p.Limit)}
}

// Offset computes the row offset for the normalized params.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Meta describes the page returned to clients alongside the items.
type Meta struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"has_more"`
}

// NewMeta builds response metadata from normalized params and a total count.
func NewMeta(params Params, total int64) Meta {
	n := params.Normalize()
	return Meta{
		Page:    n.Page,
		Limit:   n.Limit,
		Total:   total,
		HasMore: int64(n.Page*n.Limit) < total,
	}
}
