package service

import (
	"context"
	"errors"
	"slices"

	"go-cms-app/internal/data"

	"golang.org/x/sync/errgroup"
)

// GetTree materializes the page with rootID, or every root page when rootID is
// nil. An unknown rootID yields an empty slice.
//
// Root pages are not filtered by author.
func (s *PageService) GetTree(ctx context.Context, rootID *int64) ([]*data.PageWithChildren, error) {
	var roots []*data.Page
	if rootID == nil {
		var err error
		if roots, err = s.listChildren(ctx, nil); err != nil {
			return nil, err
		}
	} else {
		page, err := s.store.GetPageByID(ctx, *rootID)
		if errors.Is(err, data.ErrNotFound) {
			return []*data.PageWithChildren{}, nil
		}
		if err != nil {
			return nil, err
		}
		roots = []*data.Page{page}
	}
	return s.materializeAll(ctx, roots, 0)
}

// Materialize expands page into itself plus all of its descendants. Children
// are always ordered by ascending id.
func (s *PageService) Materialize(ctx context.Context, page *data.Page) (*data.PageWithChildren, error) {
	return s.materialize(ctx, page, 0)
}

func (s *PageService) materialize(ctx context.Context, page *data.Page, depth int) (*data.PageWithChildren, error) {
	if depth > s.opts.MaxDepth {
		return nil, inconsistency("page %d is deeper than %d levels", page.ID, s.opts.MaxDepth)
	}
	children, err := s.listChildren(ctx, &page.ID)
	if err != nil {
		return nil, err
	}
	node := &data.PageWithChildren{
		ID:            page.ID,
		Title:         page.Title,
		FriendlyTitle: page.FriendlyTitle,
		Content:       page.Content,
		ParentID:      page.ParentID,
	}
	if node.Children, err = s.materializeAll(ctx, children, depth+1); err != nil {
		return nil, err
	}
	return node, nil
}

// materializeAll expands pages concurrently. Each result lands at the index of
// its page in id order, so completion order never shows in the output.
func (s *PageService) materializeAll(ctx context.Context, pages []*data.Page, depth int) ([]*data.PageWithChildren, error) {
	sorted := slices.Clone(pages)
	slices.SortFunc(sorted, func(a, b *data.Page) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	out := make([]*data.PageWithChildren, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	for i, page := range sorted {
		g.Go(func() error {
			node, err := s.materialize(gctx, page, depth)
			if err != nil {
				return err
			}
			out[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// listChildren is the only store call of the tree walk; the semaphore caps how
// many run at once across the whole walk.
func (s *PageService) listChildren(ctx context.Context, parentID *int64) ([]*data.Page, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)
	return s.store.ListChildren(ctx, parentID)
}
