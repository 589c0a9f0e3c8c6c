package handler

import (
	"net/http"

	"go-cms-app/internal/data"
	"go-cms-app/internal/logger"
	"go-cms-app/internal/middleware"
	"go-cms-app/internal/service"

	"github.com/go-chi/chi/v5"
)

// PageHandler holds the dependencies for the page handlers.
type PageHandler struct {
	pageService service.PageServicer
	log         logger.Logger
}

// NewPageHandler creates a new PageHandler with the given dependencies.
func NewPageHandler(ps service.PageServicer, log logger.Logger) *PageHandler {
	return &PageHandler{
		pageService: ps,
		log:         log,
	}
}

// pageRequest is the body of create and update requests.
type pageRequest struct {
	Title         *string `json:"title"`
	FriendlyTitle *string `json:"friendly_title"`
	Content       *string `json:"content"`
}

type pathResponse struct {
	Path   string   `json:"path"`
	Titles []string `json:"titles"`
}

type pruneResponse struct {
	Deleted int `json:"deleted"`
}

func (h *PageHandler) listPages(w http.ResponseWriter, r *http.Request) error {
	skip, err := queryInt(r, "skip")
	if err != nil {
		return err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return err
	}
	user := middleware.GetUserInfo(r.Context())
	pages, err := h.pageService.ListPages(r.Context(), user.UserID, intOr(skip, 0), intOr(limit, 0))
	if err != nil {
		return err
	}
	if pages == nil {
		pages = []*data.Page{}
	}
	middleware.WriteJSON(w, http.StatusOK, pages)
	return nil
}

func (h *PageHandler) createPage(w http.ResponseWriter, r *http.Request) error {
	parentID, err := queryInt64(r, "parent_id")
	if err != nil {
		return err
	}
	var body pageRequest
	if err := decodeJSON(w, r, &body); err != nil {
		return err
	}
	in := service.PageInput{
		Title:         body.Title,
		FriendlyTitle: body.FriendlyTitle,
		ParentID:      parentID,
	}
	if body.Content != nil {
		in.Content = *body.Content
	}

	user := middleware.GetUserInfo(r.Context())
	page, err := h.pageService.CreatePage(r.Context(), user.UserID, in)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusCreated, page)
	return nil
}

func (h *PageHandler) getTree(w http.ResponseWriter, r *http.Request) error {
	rootID, err := queryInt64(r, "id")
	if err != nil {
		return err
	}
	tree, err := h.pageService.GetTree(r.Context(), rootID)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, tree)
	return nil
}

func (h *PageHandler) movePage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	parentID, err := queryInt64(r, "parent_id")
	if err != nil {
		return err
	}
	user := middleware.GetUserInfo(r.Context())
	page, err := h.pageService.MovePage(r.Context(), user.UserID, id, parentID)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, page)
	return nil
}

func (h *PageHandler) getPage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	user := middleware.GetUserInfo(r.Context())
	page, err := h.pageService.GetPage(r.Context(), user.UserID, id)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, page)
	return nil
}

func (h *PageHandler) updatePage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	saveVersion, err := queryBool(r, "save_version")
	if err != nil {
		return err
	}
	var body pageRequest
	if err := decodeJSON(w, r, &body); err != nil {
		return err
	}

	user := middleware.GetUserInfo(r.Context())
	update := service.PageUpdate{Title: body.Title, FriendlyTitle: body.FriendlyTitle, Content: body.Content}
	page, err := h.pageService.UpdatePage(r.Context(), user.UserID, id, update, saveVersion)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, page)
	return nil
}

func (h *PageHandler) deletePage(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	force, err := queryBool(r, "force")
	if err != nil {
		return err
	}
	user := middleware.GetUserInfo(r.Context())
	if err := h.pageService.DeletePage(r.Context(), user.UserID, id, force); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *PageHandler) listVersions(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	versions, err := h.pageService.ListVersions(r.Context(), id)
	if err != nil {
		return err
	}
	if versions == nil {
		versions = []*data.PageVersion{}
	}
	middleware.WriteJSON(w, http.StatusOK, versions)
	return nil
}

func (h *PageHandler) pruneVersions(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	keep, err := queryInt(r, "keep")
	if err != nil {
		return err
	}
	// No ownership check; see PageService.PruneVersions.
	deleted, err := h.pageService.PruneVersions(r.Context(), id, keep)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, pruneResponse{Deleted: deleted})
	return nil
}

func (h *PageHandler) getPageByPath(w http.ResponseWriter, r *http.Request) error {
	user := middleware.GetUserInfo(r.Context())
	page, err := h.pageService.ResolveByPath(r.Context(), user.UserID, service.SplitPath(chi.URLParam(r, "*")))
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, page)
	return nil
}

func (h *PageHandler) getPagePath(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	titles, err := h.pageService.PathOf(r.Context(), id)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusOK, pathResponse{Path: service.JoinPath(titles), Titles: titles})
	return nil
}
