// Package service orchestrates metadata fetching and persistence into
// the operations the API exposes.
package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pinmark/pinmark/internal/bookmark"
)

// Store is the persistence capability the manager needs. *db.SQLite
// satisfies it; tests substitute their own.
type Store interface {
	Bookmarks(ctx context.Context, ids []string) ([]*bookmark.Bookmark, error)
	Insert(ctx context.Context, bs []*bookmark.Bookmark) error
	Update(ctx context.Context, bs []*bookmark.Bookmark, fields []string) error
	Delete(ctx context.Context, ids []string) error
}

// Fetcher retrieves metadata for a raw URL. *scraper.Scraper satisfies
// it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*bookmark.Bookmark, error)
}

type OptFn func(*Manager)

// Manager implements the bookmark operations over a Store and a
// Fetcher.
type Manager struct {
	store   Store
	fetcher Fetcher
	now     func() time.Time
}

// WithClock injects the clock used for visit timestamps.
func WithClock(now func() time.Time) OptFn {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager.
func New(store Store, fetcher Fetcher, opts ...OptFn) *Manager {
	m := &Manager{
		store:   store,
		fetcher: fetcher,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Add fetches every URL, tags the results with the sentinel tag and
// persists the batch. Fetches run concurrently; the first failure
// cancels the rest and nothing is persisted. The returned bookmarks
// keep the input order.
func (m *Manager) Add(ctx context.Context, params []bookmark.AddParam) ([]*bookmark.Bookmark, error) {
	bs := make([]*bookmark.Bookmark, len(params))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range params {
		i, p := i, p
		g.Go(func() error {
			b, err := m.fetcher.Fetch(gctx, p.URL)
			if err != nil {
				return err
			}

			b.Tags = bookmark.DefaultTags()
			bs[i] = b

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := m.store.Insert(ctx, bs); err != nil {
		return nil, fmt.Errorf("persisting bookmarks: %w", err)
	}

	return bs, nil
}

// Update rewrites description and tags of the given bookmarks. An
// empty tag set becomes the sentinel set. The returned bookmarks are
// reloaded from the store so the response reflects true stored state;
// unknown ids are omitted.
func (m *Manager) Update(ctx context.Context, params []bookmark.EditParam) ([]*bookmark.Bookmark, error) {
	updates := make([]*bookmark.Bookmark, 0, len(params))
	ids := make([]string, 0, len(params))

	for _, p := range params {
		updates = append(updates, &bookmark.Bookmark{
			ID:          p.ID,
			Description: p.Description,
			Tags:        bookmark.NormalizeTags(p.Tags),
		})
		ids = append(ids, p.ID)
	}

	fields := []string{bookmark.FieldDescription, bookmark.FieldTags}
	if err := m.store.Update(ctx, updates, fields); err != nil {
		return nil, fmt.Errorf("updating bookmarks: %w", err)
	}

	return m.reload(ctx, ids)
}

// Check re-fetches metadata for existing bookmarks and persists the
// resolved URL, title, status code and check timestamp under the
// caller's ids. Like Add, the batch is all-or-nothing on fetch
// failure.
func (m *Manager) Check(ctx context.Context, params []bookmark.CheckParam) ([]*bookmark.Bookmark, error) {
	bs := make([]*bookmark.Bookmark, len(params))
	ids := make([]string, 0, len(params))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range params {
		ids = append(ids, p.ID)

		i, p := i, p
		g.Go(func() error {
			b, err := m.fetcher.Fetch(gctx, p.URL)
			if err != nil {
				return err
			}

			b.ID = p.ID
			bs[i] = b

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fields := []string{
		bookmark.FieldURL,
		bookmark.FieldTitle,
		bookmark.FieldStatusCode,
		bookmark.FieldCheckedAt,
	}
	if err := m.store.Update(ctx, bs, fields); err != nil {
		return nil, fmt.Errorf("persisting check results: %w", err)
	}

	return m.reload(ctx, ids)
}

// Delete removes the bookmarks permanently. Unknown ids are no-ops.
func (m *Manager) Delete(ctx context.Context, params []bookmark.DeleteParam) error {
	ids := make([]string, 0, len(params))
	for _, p := range params {
		ids = append(ids, p.ID)
	}

	if err := m.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("deleting bookmarks: %w", err)
	}

	return nil
}

// Visit persists the incremented visit count and the visit timestamp,
// then returns the reloaded bookmark. The caller-supplied count is
// trusted as the pre-increment value, so concurrent visits to the same
// bookmark are last-write-wins.
func (m *Manager) Visit(ctx context.Context, param bookmark.VisitParam) (*bookmark.Bookmark, error) {
	update := &bookmark.Bookmark{
		ID:          param.ID,
		VisitCount:  param.VisitCount + 1,
		LastVisitAt: m.now().Format(time.RFC3339Nano),
	}

	fields := []string{bookmark.FieldVisitCount, bookmark.FieldLastVisitAt}
	if err := m.store.Update(ctx, []*bookmark.Bookmark{update}, fields); err != nil {
		return nil, fmt.Errorf("recording visit: %w", err)
	}

	bs, err := m.store.Bookmarks(ctx, []string{param.ID})
	if err != nil {
		return nil, fmt.Errorf("reloading bookmark: %w", err)
	}

	if len(bs) == 0 {
		return nil, fmt.Errorf("%w: %q", bookmark.ErrNotFound, param.ID)
	}

	return bs[0], nil
}

// List returns the bookmarks for ids, or all bookmarks when ids is
// empty.
func (m *Manager) List(ctx context.Context, ids []string) ([]*bookmark.Bookmark, error) {
	return m.store.Bookmarks(ctx, ids)
}

// reload fetches the stored state for ids and restores request order.
// Ids with no stored row are dropped.
func (m *Manager) reload(ctx context.Context, ids []string) ([]*bookmark.Bookmark, error) {
	bs, err := m.store.Bookmarks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("reloading bookmarks: %w", err)
	}

	byID := make(map[string]*bookmark.Bookmark, len(bs))
	for _, b := range bs {
		byID[b.ID] = b
	}

	out := make([]*bookmark.Bookmark, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			out = append(out, b)
		}
	}

	return out, nil
}
