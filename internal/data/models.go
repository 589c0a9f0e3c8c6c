package data

import "time"

// Page is a titled, owned, tree-positioned content node.
type Page struct {
	ID            int64     `db:"id" json:"id"`
	Title         string    `db:"title" json:"title"`
	FriendlyTitle string    `db:"friendly_title" json:"friendly_title"`
	Content       string    `db:"content" json:"content"`
	ParentID      *int64    `db:"parent_id" json:"parent_id"`
	AuthorID      int64     `db:"author_id" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// PageVersion is an immutable snapshot of a page's content fields.
type PageVersion struct {
	ID            int64     `db:"id" json:"id"`
	PageID        int64     `db:"page_id" json:"page_id"`
	Title         string    `db:"title" json:"title"`
	FriendlyTitle string    `db:"friendly_title" json:"friendly_title"`
	Content       string    `db:"content" json:"content"`
	CreatedAt     time.Time `db:"created_at" json:"created"`
}

// NewPageVersion snapshots the current title, friendly title and content of page.
func NewPageVersion(page *Page, at time.Time) *PageVersion {
	return &PageVersion{
		PageID:        page.ID,
		Title:         page.Title,
		FriendlyTitle: page.FriendlyTitle,
		Content:       page.Content,
		CreatedAt:     at,
	}
}

// PageWithChildren is a page together with its materialized descendants.
// It is built per request and never stored.
type PageWithChildren struct {
	ID            int64               `json:"id"`
	Title         string              `json:"title"`
	FriendlyTitle string              `json:"friendly_title"`
	Content       string              `json:"content"`
	ParentID      *int64              `json:"parent_id"`
	Children      []*PageWithChildren `json:"children"`
}

// User owns pages and assets.
type User struct {
	ID          int64     `db:"id" json:"id"`
	Username    string    `db:"username" json:"username"`
	Email       *string   `db:"email" json:"email"`
	Password    string    `db:"password" json:"-"`
	OIDCSubject *string   `db:"oidc_subject" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AssetRecord describes an uploaded file placed in the asset hierarchy.
type AssetRecord struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Extension string    `db:"extension" json:"extension"`
	ParentID  *int64    `db:"parent_id" json:"parent_id"`
	BlobKey   string    `db:"blob_key" json:"-"`
	AuthorID  int64     `db:"author_id" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Filename is the asset's name joined with its extension.
func (a *AssetRecord) Filename() string {
	return a.Name + a.Extension
}
