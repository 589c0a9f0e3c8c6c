//go:build unit

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-cms-app/internal/data"
)

// memStore is an in-memory data.PageStore. WithTx snapshots the maps and
// restores them when fn fails.
type memStore struct {
	mu            sync.Mutex
	pages         map[int64]*data.Page
	versions      map[int64]*data.PageVersion
	nextPageID    int64
	nextVersionID int64

	// childDelay slows ListChildren down so concurrent calls overlap.
	childDelay  time.Duration
	inflight    int
	maxInflight int
	childCalls  int
}

var _ data.PageStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		pages:    map[int64]*data.Page{},
		versions: map[int64]*data.PageVersion{},
	}
}

func copyPage(p *data.Page) *data.Page {
	c := *p
	if p.ParentID != nil {
		id := *p.ParentID
		c.ParentID = &id
	}
	return &c
}

func (m *memStore) GetPageByID(ctx context.Context, id int64) (*data.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %d: %w", id, data.ErrNotFound)
	}
	return copyPage(p), nil
}

func (m *memStore) GetPageByTitle(ctx context.Context, authorID int64, title string, parentID *int64) (*data.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *data.Page
	for _, p := range m.pages {
		if p.AuthorID == authorID && p.Title == title && sameParent(p.ParentID, parentID) {
			if found == nil || p.ID < found.ID {
				found = p
			}
		}
	}
	if found == nil {
		return nil, fmt.Errorf("page %q: %w", title, data.ErrNotFound)
	}
	return copyPage(found), nil
}

func (m *memStore) ListPagesByAuthor(ctx context.Context, authorID int64, offset, limit int) ([]*data.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*data.Page
	for id := int64(1); id <= m.nextPageID; id++ {
		if p, ok := m.pages[id]; ok && p.AuthorID == authorID {
			out = append(out, copyPage(p))
		}
	}
	if offset >= len(out) {
		return []*data.Page{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ListChildren returns children in map order; callers must not rely on it.
func (m *memStore) ListChildren(ctx context.Context, parentID *int64) ([]*data.Page, error) {
	m.mu.Lock()
	m.childCalls++
	m.inflight++
	if m.inflight > m.maxInflight {
		m.maxInflight = m.inflight
	}
	var out []*data.Page
	for _, p := range m.pages {
		if sameParent(p.ParentID, parentID) {
			out = append(out, copyPage(p))
		}
	}
	delay := m.childDelay
	m.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()
	return out, nil
}

func (m *memStore) HasChildren(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pages {
		if p.ParentID != nil && *p.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreatePage(ctx context.Context, page *data.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPageID++
	page.ID = m.nextPageID
	m.pages[page.ID] = copyPage(page)
	return nil
}

func (m *memStore) UpdatePage(ctx context.Context, page *data.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[page.ID]; !ok {
		return fmt.Errorf("page %d: %w", page.ID, data.ErrNotFound)
	}
	m.pages[page.ID] = copyPage(page)
	return nil
}

func (m *memStore) DeletePage(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[id]; !ok {
		return fmt.Errorf("page %d: %w", id, data.ErrNotFound)
	}
	delete(m.pages, id)
	return nil
}

func (m *memStore) CreateVersion(ctx context.Context, version *data.PageVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextVersionID++
	version.ID = m.nextVersionID
	v := *version
	m.versions[v.ID] = &v
	return nil
}

// ListVersions orders by id descending, which matches creation order here.
func (m *memStore) ListVersions(ctx context.Context, pageID int64) ([]*data.PageVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*data.PageVersion{}
	for id := m.nextVersionID; id >= 1; id-- {
		if v, ok := m.versions[id]; ok && v.PageID == pageID {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memStore) DeleteVersion(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.versions[id]; !ok {
		return fmt.Errorf("version %d: %w", id, data.ErrNotFound)
	}
	delete(m.versions, id)
	return nil
}

func (m *memStore) DeleteVersionsByPage(ctx context.Context, pageID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, v := range m.versions {
		if v.PageID == pageID {
			delete(m.versions, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) WithTx(ctx context.Context, fn func(data.PageStore) error) error {
	m.mu.Lock()
	pages := make(map[int64]*data.Page, len(m.pages))
	for id, p := range m.pages {
		pages[id] = copyPage(p)
	}
	versions := make(map[int64]*data.PageVersion, len(m.versions))
	for id, v := range m.versions {
		c := *v
		versions[id] = &c
	}
	nextPage, nextVersion := m.nextPageID, m.nextVersionID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.pages, m.versions = pages, versions
		m.nextPageID, m.nextVersionID = nextPage, nextVersion
		m.mu.Unlock()
		return err
	}
	return nil
}

// put stores a page as is, bypassing all checks. Used to build broken trees.
func (m *memStore) put(p *data.Page) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID > m.nextPageID {
		m.nextPageID = p.ID
	}
	m.pages[p.ID] = copyPage(p)
}
