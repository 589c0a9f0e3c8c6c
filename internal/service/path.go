package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go-cms-app/internal/data"
)

// SplitPath turns "/a/b/c" into its non-empty segments.
func SplitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// JoinPath is the inverse of SplitPath.
func JoinPath(segments []string) string {
	return "/" + strings.Join(segments, "/")
}

// ResolveByPath walks segments from the author's root pages down, matching one
// title per level. No page stands for the empty path.
func (s *PageService) ResolveByPath(ctx context.Context, authorID int64, segments []string) (*data.Page, error) {
	if len(segments) == 0 {
		return nil, ErrNotFound
	}
	var page *data.Page
	var parentID *int64
	for _, segment := range segments {
		p, err := s.store.GetPageByTitle(ctx, authorID, segment, parentID)
		if err != nil {
			return nil, translate(err)
		}
		if p.AuthorID != authorID {
			return nil, ErrNotFound
		}
		page = p
		parentID = &p.ID
	}
	return page, nil
}

// PathOf returns the titles from the root down to page id.
func (s *PageService) PathOf(ctx context.Context, id int64) ([]string, error) {
	page, err := s.store.GetPageByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	seen := map[int64]bool{page.ID: true}
	titles := []string{page.Title}
	for hops := 0; page.ParentID != nil; hops++ {
		parentID := *page.ParentID
		if hops >= s.opts.MaxPathHops {
			return nil, inconsistency("path of page %d is longer than %d hops", id, s.opts.MaxPathHops)
		}
		if seen[parentID] {
			return nil, inconsistency("parent chain of page %d loops at page %d", id, parentID)
		}
		seen[parentID] = true

		parent, err := s.store.GetPageByID(ctx, parentID)
		if errors.Is(err, data.ErrNotFound) {
			return nil, inconsistency("page %d references missing parent %d", page.ID, parentID)
		}
		if err != nil {
			return nil, err
		}
		titles = append(titles, parent.Title)
		page = parent
	}
	slices.Reverse(titles)
	return titles, nil
}
