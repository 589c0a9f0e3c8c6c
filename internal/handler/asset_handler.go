package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go-cms-app/internal/data"
	"go-cms-app/internal/logger"
	"go-cms-app/internal/middleware"
	"go-cms-app/internal/service"

	"github.com/go-chi/chi/v5"
)

const maxUploadMemory = 32 << 20

// AssetHandler holds the dependencies for the asset handlers.
type AssetHandler struct {
	assets service.AssetServicer
	log    logger.Logger
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(as service.AssetServicer, log logger.Logger) *AssetHandler {
	return &AssetHandler{assets: as, log: log}
}

// upload accepts a multipart form with an optional "file" part and the
// fields "name", "extension" and "parent_id". Without a file the asset is an
// empty container other assets can be placed under.
func (h *AssetHandler) upload(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return middleware.BadRequest(err, "invalid multipart form")
	}
	in := service.AssetUpload{
		Name:      r.FormValue("name"),
		Extension: r.FormValue("extension"),
	}
	if raw := r.FormValue("parent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return middleware.BadRequest(err, "invalid parent_id")
		}
		in.ParentID = &id
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// container asset
	case err != nil:
		return middleware.BadRequest(err, "invalid file part")
	default:
		defer file.Close()
		in.Body = file
		if in.Name == "" {
			in.Name = header.Filename
		}
	}

	user := middleware.GetUserInfo(r.Context())
	asset, err := h.assets.CreateAsset(r.Context(), user.UserID, in)
	if err != nil {
		return err
	}
	middleware.WriteJSON(w, http.StatusCreated, asset)
	return nil
}

func (h *AssetHandler) view(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	asset, err := h.assets.GetAsset(r.Context(), id)
	if err != nil {
		return err
	}
	return h.serve(w, r, asset)
}

func (h *AssetHandler) viewByPath(w http.ResponseWriter, r *http.Request) error {
	asset, err := h.assets.ResolveByPath(r.Context(), service.SplitPath(chi.URLParam(r, "*")))
	if err != nil {
		return err
	}
	return h.serve(w, r, asset)
}

func (h *AssetHandler) delete(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	user := middleware.GetUserInfo(r.Context())
	if err := h.assets.DeleteAsset(r.Context(), user.UserID, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// serve streams the blob inline; ServeContent derives the type from the name.
func (h *AssetHandler) serve(w http.ResponseWriter, r *http.Request, asset *data.AssetRecord) error {
	f, err := h.assets.Open(asset)
	if err != nil {
		return err
	}
	defer f.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", asset.Filename()))
	http.ServeContent(w, r, asset.Filename(), asset.CreatedAt, f)
	return nil
}
