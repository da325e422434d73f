// Package resolver turns free-text labels into lookup record ids, creating
// records that do not exist yet.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Gvain-jona/ivan-test-sub005/internal/backend"
	"github.com/Gvain-jona/ivan-test-sub005/internal/shared"
)

// Reference is a label that must resolve to a record of Entity. ParentID
// scopes the match for child entities such as items within a category.
type Reference struct {
	Entity     backend.EntityType `json:"entity"`
	Label      string             `json:"label"`
	ParentID   string             `json:"parent_id,omitempty"`
	ResolvedID string             `json:"resolved_id,omitempty"`
}

// Option is a selectable lookup value.
type Option struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	ParentID string `json:"parent_id,omitempty"`
}

// Observer receives resolver events.
type Observer interface {
	StaleDiscarded(entity backend.EntityType)
}

type nopObserver struct{}

func (nopObserver) StaleDiscarded(backend.EntityType) {}

// Config wires a Resolver.
type Config struct {
	Recent      RecentStore
	RecentLimit int
	// Defaults are served when lookups fail.
	Defaults map[backend.EntityType][]Option
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

type sessionKey struct {
	entity backend.EntityType
	parent string
	label  string
}

// Resolver resolves references against a backend.Directory. Resolved ids are
// remembered for the lifetime of the Resolver.
type Resolver struct {
	dir         backend.Directory
	recent      RecentStore
	recentLimit int
	defaults    map[backend.EntityType][]Option
	logger      *slog.Logger
	observer    Observer
	now         func() time.Time

	mu      sync.RWMutex
	session map[sessionKey]string
}

// New constructs a Resolver.
func New(dir backend.Directory, cfg Config) *Resolver {
	r := &Resolver{
		dir:         dir,
		recent:      cfg.Recent,
		recentLimit: ClampRecentLimit(cfg.RecentLimit),
		defaults:    cfg.Defaults,
		logger:      cfg.Logger,
		observer:    cfg.Observer,
		now:         cfg.Now,
		session:     make(map[sessionKey]string),
	}
	if r.recent == nil {
		r.recent = NewMemoryRecentStore()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}
	return r
}

// Resolve returns the id of the record ref names, creating it when no record
// matches. Matching ignores case and surrounding or repeated whitespace.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (string, error) {
	if ref.ResolvedID != "" {
		return ref.ResolvedID, nil
	}
	label := shared.NormalizeLabel(ref.Label)
	if label == "" || !ref.Entity.Valid() {
		return "", &Error{Code: CodeInvalidReference, Entity: ref.Entity, Label: ref.Label}
	}
	key := sessionKey{entity: ref.Entity, parent: ref.ParentID, label: shared.FoldLabel(label)}

	r.mu.RLock()
	id, ok := r.session[key]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, name, err := r.find(ctx, ref.Entity, label, ref.ParentID)
	if err != nil {
		return "", err
	}
	if id == "" {
		rec, err := r.dir.Create(ctx, ref.Entity, backend.RecordInput{Name: label, ParentID: ref.ParentID})
		if err != nil {
			return "", &Error{Code: codeFromBackend(err), Entity: ref.Entity, Label: label, Err: err}
		}
		id, name = rec.ID, rec.Name
	}

	r.mu.Lock()
	r.session[key] = id
	r.mu.Unlock()

	r.remember(ctx, ref.Entity, id, name)
	return id, nil
}

// find looks for an existing record and returns an empty id when there is
// none. A failed lookup falls back to the configured defaults and fails when
// none of them match, so nothing is created without a confirmed miss.
func (r *Resolver) find(ctx context.Context, entity backend.EntityType, label, parentID string) (string, string, error) {
	folded := shared.FoldLabel(label)
	records, err := r.dir.Lookup(ctx, entity, backend.Filter{NameEquals: label, ParentID: parentID})
	if err != nil {
		r.logger.Warn("resolver lookup failed, using defaults",
			slog.String("entity", string(entity)), slog.Any("error", err))
		for _, opt := range r.defaults[entity] {
			if (parentID == "" || opt.ParentID == parentID) && shared.FoldLabel(opt.Label) == folded {
				return opt.ID, opt.Label, nil
			}
		}
		return "", "", &Error{Code: codeFromBackend(err), Entity: entity, Label: label, Err: err}
	}
	for _, rec := range records {
		if shared.FoldLabel(rec.Name) == folded {
			return rec.ID, rec.Name, nil
		}
	}
	return "", "", nil
}

func (r *Resolver) remember(ctx context.Context, entity backend.EntityType, id, label string) {
	opt := RecentOption{ID: id, Label: label, UsedAt: r.now()}
	if err := r.recent.Push(ctx, entity, opt, r.recentLimit); err != nil {
		r.logger.Warn("resolver recent push failed",
			slog.String("entity", string(entity)), slog.Any("error", err))
	}
}

// Recent returns the most recently resolved options for entity.
func (r *Resolver) Recent(ctx context.Context, entity backend.EntityType) ([]RecentOption, error) {
	list, err := r.recent.List(ctx, entity)
	if err != nil {
		return nil, err
	}
	if len(list) > r.recentLimit {
		list = list[:r.recentLimit]
	}
	return list, nil
}

// Options returns the records whose label contains text. A failed lookup
// serves the matching defaults instead, and the error is returned only when
// no defaults exist for entity.
func (r *Resolver) Options(ctx context.Context, entity backend.EntityType, text, parentID string) ([]Option, error) {
	records, err := r.dir.Lookup(ctx, entity, backend.Filter{NameContains: text, ParentID: parentID})
	if err != nil {
		defaults, ok := r.defaults[entity]
		if !ok {
			return nil, err
		}
		return filterOptions(defaults, text, parentID), nil
	}
	out := make([]Option, 0, len(records))
	for _, rec := range records {
		out = append(out, Option{ID: rec.ID, Label: rec.Name, ParentID: rec.ParentID})
	}
	return out, nil
}

func filterOptions(opts []Option, text, parentID string) []Option {
	needle := shared.FoldLabel(text)
	out := make([]Option, 0, len(opts))
	for _, opt := range opts {
		if parentID != "" && opt.ParentID != parentID {
			continue
		}
		if needle != "" && !strings.Contains(shared.FoldLabel(opt.Label), needle) {
			continue
		}
		out = append(out, opt)
	}
	return out
}

// NewSearch creates a typeahead instance for one input field.
func (r *Resolver) NewSearch(entity backend.EntityType) *Search {
	return &Search{resolver: r, entity: entity, results: []Option{}}
}
