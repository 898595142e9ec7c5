package services

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	DefaultSuggestedUsers = 5
	DefaultSuggestedPods  = 4
	DefaultSearchLimit    = 20
	DefaultPopularStories = 5
)

// Page selects a window of a list ordered deterministically by the store.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
