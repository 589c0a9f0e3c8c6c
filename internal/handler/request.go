package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go-cms-app/internal/middleware"

	"github.com/go-chi/chi/v5"
)

const maxJSONBody = 1 << 20

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return middleware.BadRequest(err, "invalid JSON body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, middleware.BadRequest(err, "invalid id")
	}
	return id, nil
}

// queryInt64 returns nil when the parameter is absent or empty.
func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, middleware.BadRequest(err, fmt.Sprintf("invalid %s", name))
	}
	return &v, nil
}

// queryInt returns nil when the parameter is absent or empty.
func queryInt(r *http.Request, name string) (*int, error) {
	v, err := queryInt64(r, name)
	if v == nil || err != nil {
		return nil, err
	}
	n := int(*v)
	return &n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, middleware.BadRequest(err, fmt.Sprintf("invalid %s", name))
	}
	return v, nil
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

var errNotConfigured = errors.New("feature not configured")
