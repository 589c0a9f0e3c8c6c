package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PageStore is the persistence contract for pages and their versions.
type PageStore interface {
	GetPageByID(ctx context.Context, id int64) (*Page, error)
	GetPageByTitle(ctx context.Context, authorID int64, title string, parentID *int64) (*Page, error)
	ListPagesByAuthor(ctx context.Context, authorID int64, offset, limit int) ([]*Page, error)
	ListChildren(ctx context.Context, parentID *int64) ([]*Page, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	CreatePage(ctx context.Context, page *Page) error
	UpdatePage(ctx context.Context, page *Page) error
	DeletePage(ctx context.Context, id int64) error

	CreateVersion(ctx context.Context, version *PageVersion) error
	ListVersions(ctx context.Context, pageID int64) ([]*PageVersion, error)
	DeleteVersion(ctx context.Context, id int64) error
	DeleteVersionsByPage(ctx context.Context, pageID int64) (int64, error)

	// WithTx runs fn against a store bound to a single transaction. The
	// transaction commits if fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(PageStore) error) error
}

const pageColumns = `id, title, friendly_title, content, parent_id, author_id, created_at, updated_at`
const versionColumns = `id, page_id, title, friendly_title, content, created_at`

// SQLPageRepository is a concrete implementation of the PageStore interface using sqlx.
type SQLPageRepository struct {
	db   sqlx.ExtContext
	pool *sqlx.DB // nil when bound to a transaction
}

var _ PageStore = (*SQLPageRepository)(nil)

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db, pool: db}
}

// WithTx implements PageStore. Nested calls reuse the outer transaction.
func (r *SQLPageRepository) WithTx(ctx context.Context, fn func(PageStore) error) error {
	if r.pool == nil {
		return fn(r)
	}
	tx, err := r.pool.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLPageRepository{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPageByID retrieves a single page by its ID.
func (r *SQLPageRepository) GetPageByID(ctx context.Context, id int64) (*Page, error) {
	var page Page
	query := r.db.Rebind(`SELECT ` + pageColumns + ` FROM pages WHERE id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &page, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page with id %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page by id: %w", err)
	}
	return &page, nil
}

// GetPageByTitle retrieves the author's page with the given title under parentID.
// A nil parentID selects among the author's root pages.
func (r *SQLPageRepository) GetPageByTitle(ctx context.Context, authorID int64, title string, parentID *int64) (*Page, error) {
	var page Page
	var err error
	if parentID == nil {
		query := r.db.Rebind(`SELECT ` + pageColumns + ` FROM pages WHERE author_id = ? AND title = ? AND parent_id IS NULL ORDER BY id LIMIT 1`)
		err = sqlx.GetContext(ctx, r.db, &page, query, authorID, title)
	} else {
		query := r.db.Rebind(`SELECT ` + pageColumns + ` FROM pages WHERE author_id = ? AND title = ? AND parent_id = ? ORDER BY id LIMIT 1`)
		err = sqlx.GetContext(ctx, r.db, &page, query, authorID, title, *parentID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page with title '%s': %w", title, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page by title: %w", err)
	}
	return &page, nil
}

// ListPagesByAuthor returns the author's pages ordered by id. A non-positive
// limit means no limit.
func (r *SQLPageRepository) ListPagesByAuthor(ctx context.Context, authorID int64, offset, limit int) ([]*Page, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		// Portable "no limit": MySQL rejects OFFSET without LIMIT.
		limit = 1<<31 - 1
	}
	pages := []*Page{}
	query := r.db.Rebind(`SELECT ` + pageColumns + ` FROM pages WHERE author_id = ? ORDER BY id LIMIT ? OFFSET ?`)
	if err := sqlx.SelectContext(ctx, r.db, &pages, query, authorID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list pages by author: %w", err)
	}
	return pages, nil
}

// ListChildren returns the pages whose parent is parentID, or the root pages
// of every author when parentID is nil. Rows come back in id order.
func (r *SQLPageRepository) ListChildren(ctx context.Context, parentID *int64) ([]*Page, error) {
	pages := []*Page{}
	var err error
	if parentID == nil {
		err = sqlx.SelectContext(ctx, r.db, &pages, `SELECT `+pageColumns+` FROM pages WHERE parent_id IS NULL ORDER BY id`)
	} else {
		query := r.db.Rebind(`SELECT ` + pageColumns + ` FROM pages WHERE parent_id = ? ORDER BY id`)
		err = sqlx.SelectContext(ctx, r.db, &pages, query, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list child pages: %w", err)
	}
	return pages, nil
}

// HasChildren reports whether any page references id as its parent.
func (r *SQLPageRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM pages WHERE parent_id = ?`)
	if err := sqlx.GetContext(ctx, r.db, &count, query, id); err != nil {
		return false, fmt.Errorf("failed to count child pages: %w", err)
	}
	return count > 0, nil
}

// CreatePage inserts a new page and sets page.ID to the assigned identity.
func (r *SQLPageRepository) CreatePage(ctx context.Context, page *Page) error {
	query := `INSERT INTO pages (title, friendly_title, content, parent_id, author_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.db, query,
		page.Title, page.FriendlyTitle, page.Content, page.ParentID, page.AuthorID, page.CreatedAt, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute create page query: %w", err)
	}
	page.ID = id
	return nil
}

// UpdatePage writes every mutable column of page.
func (r *SQLPageRepository) UpdatePage(ctx context.Context, page *Page) error {
	query := `UPDATE pages SET title = :title, friendly_title = :friendly_title, content = :content, parent_id = :parent_id, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.db, query, page)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	return expectRow(result, "page", page.ID)
}

// DeletePage removes a page by its ID.
func (r *SQLPageRepository) DeletePage(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM pages WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return expectRow(result, "page", id)
}

// CreateVersion inserts a page version and sets version.ID.
func (r *SQLPageRepository) CreateVersion(ctx context.Context, version *PageVersion) error {
	query := `INSERT INTO page_versions (page_id, title, friendly_title, content, created_at) VALUES (?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.db, query,
		version.PageID, version.Title, version.FriendlyTitle, version.Content, version.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create page version: %w", err)
	}
	version.ID = id
	return nil
}

// ListVersions returns a page's versions, newest first.
func (r *SQLPageRepository) ListVersions(ctx context.Context, pageID int64) ([]*PageVersion, error) {
	versions := []*PageVersion{}
	query := r.db.Rebind(`SELECT ` + versionColumns + ` FROM page_versions WHERE page_id = ? ORDER BY created_at DESC, id DESC`)
	if err := sqlx.SelectContext(ctx, r.db, &versions, query, pageID); err != nil {
		return nil, fmt.Errorf("failed to list page versions: %w", err)
	}
	return versions, nil
}

// DeleteVersion removes a single version.
func (r *SQLPageRepository) DeleteVersion(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM page_versions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete page version: %w", err)
	}
	return expectRow(result, "page version", id)
}

// DeleteVersionsByPage removes every version of a page and reports how many were deleted.
func (r *SQLPageRepository) DeleteVersionsByPage(ctx context.Context, pageID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM page_versions WHERE page_id = ?`), pageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete page versions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// insertReturningID runs an INSERT written with '?' placeholders and returns the new
// row id. PostgreSQL has no LastInsertId, so it gets a RETURNING clause instead.
func insertReturningID(ctx context.Context, db sqlx.ExtContext, query string, args ...interface{}) (int64, error) {
	if db.DriverName() == DriverPostgres {
		var id int64
		if err := db.QueryRowxContext(ctx, db.Rebind(query+" RETURNING id"), args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func expectRow(result sql.Result, kind string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no %s with id %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
