package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-cms-app/internal/config"
	"go-cms-app/internal/data"
	"go-cms-app/internal/logger"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/semaphore"
)

// PageServicer defines the interface for interacting with pages.
type PageServicer interface {
	ListPages(ctx context.Context, authorID int64, skip, limit int) ([]*data.Page, error)
	CreatePage(ctx context.Context, authorID int64, in PageInput) (*data.Page, error)
	GetTree(ctx context.Context, rootID *int64) ([]*data.PageWithChildren, error)
	MovePage(ctx context.Context, authorID, id int64, parentID *int64) (*data.Page, error)
	GetPage(ctx context.Context, authorID, id int64) (*data.Page, error)
	UpdatePage(ctx context.Context, authorID, id int64, in PageUpdate, saveVersion bool) (*data.Page, error)
	ListVersions(ctx context.Context, pageID int64) ([]*data.PageVersion, error)
	PruneVersions(ctx context.Context, pageID int64, keep *int) (int, error)
	DeletePage(ctx context.Context, authorID, id int64, force bool) error
	ResolveByPath(ctx context.Context, authorID int64, segments []string) (*data.Page, error)
	PathOf(ctx context.Context, id int64) ([]string, error)
}

// PageInput carries the fields of a page to create. At least one of Title and
// FriendlyTitle must be set.
type PageInput struct {
	Title         *string
	FriendlyTitle *string
	Content       string
	ParentID      *int64
}

// PageUpdate carries the fields to change on an existing page; nil fields are
// left untouched. The parent is changed through MovePage only.
type PageUpdate struct {
	Title         *string
	FriendlyTitle *string
	Content       *string
}

// Options bounds the tree walks and selects content handling.
type Options struct {
	MaxDepth       int
	MaxConcurrency int
	MaxPathHops    int
	Sanitize       bool
}

// OptionsFromConfig builds Options from the tree and content config sections.
func OptionsFromConfig(tree config.TreeConfig, content config.ContentConfig) Options {
	return Options{
		MaxDepth:       tree.MaxDepth,
		MaxConcurrency: tree.MaxConcurrency,
		MaxPathHops:    tree.MaxPathHops,
		Sanitize:       content.Sanitize,
	}
}

// PageService provides business logic for managing pages.
type PageService struct {
	store     data.PageStore
	log       logger.Logger
	opts      Options
	sanitizer *bluemonday.Policy
	sem       *semaphore.Weighted
	now       func() time.Time
}

var _ PageServicer = (*PageService)(nil)

// NewPageService creates a new PageService on top of the given store.
func NewPageService(store data.PageStore, log logger.Logger, opts Options) *PageService {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 256
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 16
	}
	if opts.MaxPathHops <= 0 {
		opts.MaxPathHops = 1024
	}
	s := &PageService{
		store: store,
		log:   log,
		opts:  opts,
		sem:   semaphore.NewWeighted(int64(opts.MaxConcurrency)),
		now:   func() time.Time { return time.Now().UTC() },
	}
	if opts.Sanitize {
		// UGCPolicy keeps basic formatting and strips scripts and event handlers.
		s.sanitizer = bluemonday.UGCPolicy()
	}
	return s
}

// ListPages returns the author's pages ordered by id.
func (s *PageService) ListPages(ctx context.Context, authorID int64, skip, limit int) ([]*data.Page, error) {
	if skip < 0 {
		return nil, validationErr("skip", "must not be negative")
	}
	if limit < 0 {
		return nil, validationErr("limit", "must not be negative")
	}
	return s.store.ListPagesByAuthor(ctx, authorID, skip, limit)
}

// CreatePage validates the input and stores a new page owned by authorID.
func (s *PageService) CreatePage(ctx context.Context, authorID int64, in PageInput) (*data.Page, error) {
	title, friendlyTitle, err := resolveTitles(in.Title, in.FriendlyTitle)
	if err != nil {
		return nil, err
	}

	now := s.now()
	page := &data.Page{
		Title:         title,
		FriendlyTitle: friendlyTitle,
		Content:       s.sanitize(in.Content),
		ParentID:      in.ParentID,
		AuthorID:      authorID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.store.WithTx(ctx, func(tx data.PageStore) error {
		if in.ParentID != nil {
			if _, err := s.ownedPage(ctx, tx, authorID, *in.ParentID); err != nil {
				if errors.Is(err, ErrNotFound) {
					return validationErr("parent_id", "parent page does not exist")
				}
				return err
			}
		}
		if err := ensureTitleFree(ctx, tx, authorID, title, in.ParentID, 0); err != nil {
			return err
		}
		return tx.CreatePage(ctx, page)
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// GetPage returns the page if it exists and belongs to authorID.
func (s *PageService) GetPage(ctx context.Context, authorID, id int64) (*data.Page, error) {
	return s.ownedPage(ctx, s.store, authorID, id)
}

// UpdatePage applies the non-nil fields of in. With saveVersion the page's
// previous title, friendly title and content are kept as a PageVersion.
func (s *PageService) UpdatePage(ctx context.Context, authorID, id int64, in PageUpdate, saveVersion bool) (*data.Page, error) {
	var updated *data.Page
	err := s.store.WithTx(ctx, func(tx data.PageStore) error {
		page, err := s.ownedPage(ctx, tx, authorID, id)
		if err != nil {
			return err
		}
		if err := s.snapshotIfRequested(ctx, tx, page, saveVersion); err != nil {
			return err
		}

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if err := validateTitle(title); err != nil {
				return err
			}
			if title != page.Title {
				if err := ensureTitleFree(ctx, tx, authorID, title, page.ParentID, page.ID); err != nil {
					return err
				}
				page.Title = title
			}
		}
		if in.FriendlyTitle != nil {
			friendly := strings.TrimSpace(*in.FriendlyTitle)
			if friendly == "" {
				return validationErr("friendly_title", "must not be empty")
			}
			page.FriendlyTitle = friendly
		}
		if in.Content != nil {
			page.Content = s.sanitize(*in.Content)
		}
		page.UpdatedAt = s.now()

		if err := tx.UpdatePage(ctx, page); err != nil {
			return translate(err)
		}
		updated = page
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePage removes a page and its versions. A page with children is only
// removed when force is set, and its children keep their parent_id.
func (s *PageService) DeletePage(ctx context.Context, authorID, id int64, force bool) error {
	var orphaned bool
	err := s.store.WithTx(ctx, func(tx data.PageStore) error {
		if _, err := s.ownedPage(ctx, tx, authorID, id); err != nil {
			return err
		}
		hasChildren, err := tx.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if hasChildren && !force {
			return &ConflictError{Message: "page has child pages; delete them first or use force"}
		}
		orphaned = hasChildren

		if err := cascadeDeleteVersions(ctx, tx, id); err != nil {
			return err
		}
		return translate(tx.DeletePage(ctx, id))
	})
	if err != nil {
		return err
	}
	if orphaned {
		s.log.With(map[string]interface{}{"page_id": id}).Warn("Force-deleted a page with children; they still reference it as parent")
	}
	return nil
}

// ownedPage loads a page through store and hides pages of other authors.
func (s *PageService) ownedPage(ctx context.Context, store data.PageStore, authorID, id int64) (*data.Page, error) {
	page, err := store.GetPageByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if page.AuthorID != authorID {
		return nil, ErrNotFound
	}
	return page, nil
}

func (s *PageService) sanitize(content string) string {
	if s.sanitizer == nil {
		return content
	}
	return s.sanitizer.Sanitize(content)
}
