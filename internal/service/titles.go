package service

import (
	"context"
	"errors"
	"strings"

	"go-cms-app/internal/data"
)

// Slugify derives a machine-safe title from a display name:
// "My Page, Two" becomes "my-page-two".
func Slugify(friendlyTitle string) string {
	slug := strings.ReplaceAll(strings.TrimSpace(friendlyTitle), " ", "-")
	slug = strings.ReplaceAll(slug, ",", "")
	return strings.ToLower(slug)
}

// resolveTitles fills in whichever of title and friendly title is missing.
func resolveTitles(title, friendlyTitle *string) (string, string, error) {
	t, f := deref(title), deref(friendlyTitle)
	switch {
	case t == "" && f == "":
		return "", "", validationErr("title", "must set either title or friendly_title")
	case t == "":
		t = Slugify(f)
	case f == "":
		f = t
	}
	if err := validateTitle(t); err != nil {
		return "", "", err
	}
	return t, f, nil
}

// validateTitle checks that a title can serve as a path segment.
func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return validationErr("title", "must not be empty")
	}
	if strings.Contains(title, "/") {
		return validationErr("title", "must not contain '/'")
	}
	return nil
}

// ensureTitleFree fails when another of the author's pages under parentID
// already uses title. selfID is ignored so a page does not collide with itself.
func ensureTitleFree(ctx context.Context, store data.PageStore, authorID int64, title string, parentID *int64, selfID int64) error {
	existing, err := store.GetPageByTitle(ctx, authorID, title, parentID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.ID == selfID {
		return nil
	}
	return validationErr("title", "a sibling page already uses this title")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
