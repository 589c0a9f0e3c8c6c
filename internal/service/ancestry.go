package service

import (
	"context"

	"go-cms-app/internal/data"
)

// IsAncestorOf reports whether descendant lies below ancestor. A page is never
// its own ancestor.
func (s *PageService) IsAncestorOf(ctx context.Context, ancestor, descendant *data.Page) (bool, error) {
	return s.isAncestorOf(ctx, s.store, ancestor.ID, descendant.ID)
}

// isAncestorOf walks the subtree of ancestorID level by level and stops at the
// first level that contains descendantID.
func (s *PageService) isAncestorOf(ctx context.Context, store data.PageStore, ancestorID, descendantID int64) (bool, error) {
	seen := map[int64]bool{ancestorID: true}
	frontier := []int64{ancestorID}
	for depth := 0; len(frontier) > 0; depth++ {
		if depth > s.opts.MaxDepth {
			return false, inconsistency("page %d has a subtree deeper than %d levels", ancestorID, s.opts.MaxDepth)
		}
		var next []int64
		for _, id := range frontier {
			children, err := store.ListChildren(ctx, &id)
			if err != nil {
				return false, err
			}
			for _, child := range children {
				if child.ID == descendantID {
					return true, nil
				}
				if seen[child.ID] {
					return false, inconsistency("page %d is reachable twice below page %d", child.ID, ancestorID)
				}
				seen[child.ID] = true
				next = append(next, child.ID)
			}
		}
		frontier = next
	}
	return false, nil
}

// MovePage re-parents page id under parentID, or makes it a root page when
// parentID is nil. Both pages must belong to authorID. Only parent_id changes;
// descendants move along with the page.
func (s *PageService) MovePage(ctx context.Context, authorID, id int64, parentID *int64) (*data.Page, error) {
	var moved *data.Page
	err := s.store.WithTx(ctx, func(tx data.PageStore) error {
		page, err := s.ownedPage(ctx, tx, authorID, id)
		if err != nil {
			return err
		}
		if parentID != nil {
			parent, err := s.ownedPage(ctx, tx, authorID, *parentID)
			if err != nil {
				return err
			}
			if parent.ID == page.ID {
				return validationErr("parent_id", "cannot move a page under itself")
			}
			isAncestor, err := s.isAncestorOf(ctx, tx, page.ID, parent.ID)
			if err != nil {
				return err
			}
			if isAncestor {
				return validationErr("parent_id", "cannot move a page to its descendant")
			}
		}

		moved = page
		if sameParent(page.ParentID, parentID) {
			return nil
		}
		if err := ensureTitleFree(ctx, tx, authorID, page.Title, parentID, page.ID); err != nil {
			return err
		}
		page.ParentID = parentID
		return translate(tx.UpdatePage(ctx, page))
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
