package core

// DefaultLimit is the page size applied when a query does not set one.
const DefaultLimit = 100

// Filter narrows transaction queries. Zero-value fields are ignored.
// Date bounds are inclusive.
type Filter struct {
	StartDate *Date
	EndDate   *Date
	Category  string
	Type      Type
	Skip      int
	Limit     int
}

// Matches reports whether a transaction passes every set filter field.
// Pagination is the caller's concern.
func (f Filter) Matches(t Transaction) bool {
	if f.StartDate != nil && t.Date.Before(f.StartDate.Time) {
		return false
	}
	if f.EndDate != nil && t.Date.After(f.EndDate.Time) {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

// Page applies skip/limit semantics to an already filtered slice.
func (f Filter) Page(items []Transaction) []Transaction {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	skip := f.Skip
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return nil
	}
	items = items[skip:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
