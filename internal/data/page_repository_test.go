//go:build integration

package data

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go-cms-app/internal/config"

	"github.com/jmoiron/sqlx"
)

// setupTestDB creates a new in-memory SQLite database with the schema applied.
// It returns the connection and a teardown function to be deferred.
func setupTestDB(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()

	db, err := NewDB(config.DBConfig{Driver: DriverSQLite3, DSN: "file::memory:"})
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}
	for _, f := range []string{
		"../../migrations/sqlite/000001_create_pages.up.sql",
		"../../migrations/sqlite/000002_create_auth_tables.up.sql",
	} {
		schema, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("Failed to read migration %s: %v", f, err)
		}
		db.MustExec(string(schema))
	}

	return db, func() { db.Close() }
}

func seedUser(t *testing.T, db *sqlx.DB, username string) *User {
	t.Helper()
	user := &User{Username: username, Password: "x", CreatedAt: time.Now().UTC()}
	if err := NewUserRepository(db).Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func newTestPage(authorID int64, title string, parentID *int64) *Page {
	now := time.Now().UTC()
	return &Page{Title: title, FriendlyTitle: title, Content: "content of " + title, ParentID: parentID, AuthorID: authorID, CreatedAt: now, UpdatedAt: now}
}

func TestSQLPageRepository_CreateAndGet(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "alice")

	root := newTestPage(user.ID, "root", nil)
	if err := repo.CreatePage(ctx, root); err != nil {
		t.Fatalf("CreatePage failed: %v", err)
	}
	if root.ID == 0 {
		t.Fatal("expected non-zero id")
	}

	found, err := repo.GetPageByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("GetPageByID failed: %v", err)
	}
	if found.Title != "root" || found.AuthorID != user.ID || found.ParentID != nil {
		t.Errorf("unexpected page: %+v", found)
	}

	_, err = repo.GetPageByID(ctx, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLPageRepository_GetPageByTitle(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	root := newTestPage(alice.ID, "docs", nil)
	if err := repo.CreatePage(ctx, root); err != nil {
		t.Fatal(err)
	}
	child := newTestPage(alice.ID, "intro", &root.ID)
	if err := repo.CreatePage(ctx, child); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreatePage(ctx, newTestPage(bob.ID, "docs", nil)); err != nil {
		t.Fatal(err)
	}

	found, err := repo.GetPageByTitle(ctx, alice.ID, "docs", nil)
	if err != nil {
		t.Fatalf("GetPageByTitle failed: %v", err)
	}
	if found.ID != root.ID {
		t.Errorf("expected alice's root %d, got %d", root.ID, found.ID)
	}

	found, err = repo.GetPageByTitle(ctx, alice.ID, "intro", &root.ID)
	if err != nil {
		t.Fatalf("GetPageByTitle failed: %v", err)
	}
	if found.ID != child.ID {
		t.Errorf("expected child %d, got %d", child.ID, found.ID)
	}

	if _, err := repo.GetPageByTitle(ctx, alice.ID, "intro", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a child looked up as root, got %v", err)
	}
}

func TestSQLPageRepository_ListPagesByAuthor(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")

	for _, title := range []string{"a", "b", "c", "d"} {
		if err := repo.CreatePage(ctx, newTestPage(alice.ID, title, nil)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.CreatePage(ctx, newTestPage(bob.ID, "e", nil)); err != nil {
		t.Fatal(err)
	}

	all, err := repo.ListPagesByAuthor(ctx, alice.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListPagesByAuthor failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 pages, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Errorf("pages not ordered by id: %d before %d", all[i-1].ID, all[i].ID)
		}
	}

	page, err := repo.ListPagesByAuthor(ctx, alice.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListPagesByAuthor failed: %v", err)
	}
	if len(page) != 2 || page[0].Title != "b" || page[1].Title != "c" {
		t.Errorf("unexpected window: %+v", page)
	}
}

func TestSQLPageRepository_ListChildren(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "alice")

	root := newTestPage(user.ID, "root", nil)
	if err := repo.CreatePage(ctx, root); err != nil {
		t.Fatal(err)
	}
	for _, title := range []string{"x", "y"} {
		if err := repo.CreatePage(ctx, newTestPage(user.ID, title, &root.ID)); err != nil {
			t.Fatal(err)
		}
	}

	roots, err := repo.ListChildren(ctx, nil)
	if err != nil {
		t.Fatalf("ListChildren(nil) failed: %v", err)
	}
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Errorf("expected only the root page, got %+v", roots)
	}

	children, err := repo.ListChildren(ctx, &root.ID)
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if len(children) != 2 {
		t.Errorf("expected 2 children, got %d", len(children))
	}

	has, err := repo.HasChildren(ctx, root.ID)
	if err != nil || !has {
		t.Errorf("expected root to have children, got %v, %v", has, err)
	}
	has, err = repo.HasChildren(ctx, children[0].ID)
	if err != nil || has {
		t.Errorf("expected leaf to have no children, got %v, %v", has, err)
	}
}

func TestSQLPageRepository_Versions(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "alice")

	page := newTestPage(user.ID, "page", nil)
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatal(err)
	}
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		v := NewPageVersion(page, base.Add(time.Duration(i)*time.Second))
		v.Content = string(rune('a' + i))
		if err := repo.CreateVersion(ctx, v); err != nil {
			t.Fatalf("CreateVersion failed: %v", err)
		}
	}

	versions, err := repo.ListVersions(ctx, page.ID)
	if err != nil {
		t.Fatalf("ListVersions failed: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 versions, got %d", len(versions))
	}
	if versions[0].Content != "c" || versions[2].Content != "a" {
		t.Errorf("expected newest first, got %q..%q", versions[0].Content, versions[2].Content)
	}

	if err := repo.DeleteVersion(ctx, versions[0].ID); err != nil {
		t.Fatalf("DeleteVersion failed: %v", err)
	}
	n, err := repo.DeleteVersionsByPage(ctx, page.ID)
	if err != nil {
		t.Fatalf("DeleteVersionsByPage failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted versions, got %d", n)
	}
}

func TestSQLPageRepository_WithTxRollsBack(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "alice")

	page := newTestPage(user.ID, "page", nil)
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := repo.WithTx(ctx, func(tx PageStore) error {
		if err := tx.CreateVersion(ctx, NewPageVersion(page, time.Now().UTC())); err != nil {
			return err
		}
		page.Title = "renamed"
		if err := tx.UpdatePage(ctx, page); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	found, err := repo.GetPageByID(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found.Title != "page" {
		t.Errorf("expected rolled back title 'page', got '%s'", found.Title)
	}
	versions, err := repo.ListVersions(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) != 0 {
		t.Errorf("expected no versions after rollback, got %d", len(versions))
	}
}

func TestSQLPageRepository_DeletePage(t *testing.T) {
	db, teardown := setupTestDB(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()
	user := seedUser(t, db, "alice")

	page := newTestPage(user.ID, "page", nil)
	if err := repo.CreatePage(ctx, page); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeletePage(ctx, page.ID); err != nil {
		t.Fatalf("DeletePage failed: %v", err)
	}
	if err := repo.DeletePage(ctx, page.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
