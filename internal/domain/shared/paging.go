package shared

// Page sizes accepted by list queries
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Filter carries the paging and ordering of a list query. OrderBy names a
// column the repository whitelists; OrderDir is "asc" or "desc".
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// Normalize clamps the page to at least one and the size to
// [1, MaxPageSize]. Any direction but "asc" becomes "desc".
func (f Filter) Normalize() Filter {
	f.Page = max(f.Page, 1)
	switch {
	case f.PageSize < 1:
		f.PageSize = DefaultPageSize
	case f.PageSize > MaxPageSize:
		f.PageSize = MaxPageSize
	}
	if f.OrderDir != "asc" {
		f.OrderDir = "desc"
	}
	return f
}

// Offset is the number of rows before the current page
func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
