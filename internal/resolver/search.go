package resolver

import (
	"context"
	"sync"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
)

// Search backs one typeahead field. Queries may overlap; only the response to
// the most recently issued query is ever applied to Results.
type Search struct {
	resolver *Resolver
	entity   backend.EntityType

	mu       sync.Mutex
	issued   uint64
	parentID string
	results  []Option
}

// SetParent scopes later queries to a parent record.
func (s *Search) SetParent(parentID string) {
	s.mu.Lock()
	s.parentID = parentID
	s.mu.Unlock()
}

// Query looks up options matching text. applied reports whether the response
// became the current result set; a response overtaken by a newer query is
// discarded and returns applied=false with a nil error.
func (s *Search) Query(ctx context.Context, text string) (results []Option, applied bool, err error) {
	s.mu.Lock()
	s.issued++
	token := s.issued
	parentID := s.parentID
	s.mu.Unlock()

	opts, err := s.resolver.Options(ctx, s.entity, text, parentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.issued {
		s.resolver.observer.StaleDiscarded(s.entity)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	s.results = opts
	return append([]Option(nil), opts...), true, nil
}

// Results returns the currently applied result set.
func (s *Search) Results() []Option {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Option{}, s.results...)
}
