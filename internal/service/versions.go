package service

import (
	"context"

	"go-cms-app/internal/data"
)

// DefaultKeepVersions is how many versions PruneVersions keeps when keep is nil.
const DefaultKeepVersions = 1

// snapshotIfRequested stores the page's current content fields as a version.
// It must run before the update is applied to page.
func (s *PageService) snapshotIfRequested(ctx context.Context, tx data.PageStore, page *data.Page, saveVersion bool) error {
	if !saveVersion {
		return nil
	}
	return tx.CreateVersion(ctx, data.NewPageVersion(page, s.now()))
}

// ListVersions returns the versions of a page, newest first.
func (s *PageService) ListVersions(ctx context.Context, pageID int64) ([]*data.PageVersion, error) {
	return s.store.ListVersions(ctx, pageID)
}

// PruneVersions deletes all but the newest keep versions of a page and returns
// how many were deleted. keep defaults to DefaultKeepVersions; zero deletes all.
// It is not scoped to the page's author: any editor can prune any page, the
// same as ListVersions and GetTree(nil).
func (s *PageService) PruneVersions(ctx context.Context, pageID int64, keep *int) (int, error) {
	n := DefaultKeepVersions
	if keep != nil {
		n = *keep
	}
	if n < 0 {
		return 0, validationErr("keep", "must not be negative")
	}

	var deleted int
	err := s.store.WithTx(ctx, func(tx data.PageStore) error {
		versions, err := tx.ListVersions(ctx, pageID)
		if err != nil {
			return err
		}
		if len(versions) <= n {
			return nil
		}
		for _, v := range versions[n:] {
			if err := tx.DeleteVersion(ctx, v.ID); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// cascadeDeleteVersions removes every version of a page ahead of the page itself.
func cascadeDeleteVersions(ctx context.Context, tx data.PageStore, pageID int64) error {
	_, err := tx.DeleteVersionsByPage(ctx, pageID)
	return err
}
