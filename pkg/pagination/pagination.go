package pagination

const (
	// DefaultPageSize is the standard page size when one is not provided.
	DefaultPageSize = 25
	// MaxPageSize caps how many rows any paginated query can request.
	MaxPageSize = 100
)

// Params holds page pagination inputs from controllers or services.
type Params struct {
	Page     int
	PageSize int
}

// Normalize enforces the configured defaults and maximum page size.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Limit returns the normalized page size.
func (p Params) Limit() int {
	return p.Normalize().PageSize
}

// Page wraps one page of results with totals for the response envelope.
type Page[T any] struct {
	Data       []T   `json:"data"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// NewPage assembles a Page from the query results and the total row count.
func NewPage[T any](data []T, total int64, params Params) Page[T] {
	n := params.Normalize()
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(n.PageSize) - 1) / int64(n.PageSize))
	}
	return Page[T]{
		Data:       data,
		Total:      total,
		Page:       n.Page,
		PageSize:   n.PageSize,
		TotalPages: totalPages,
	}
}
