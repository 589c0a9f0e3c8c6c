package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"go-cms-app/internal/data"
	"go-cms-app/internal/logger"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// AssetRepository defines the database operations on asset records.
type AssetRepository interface {
	FindByName(ctx context.Context, name, extension string, parentID *int64) (*data.AssetRecord, error)
	GetByID(ctx context.Context, id int64) (*data.AssetRecord, error)
	HasChildren(ctx context.Context, id int64) (bool, error)
	Save(ctx context.Context, asset *data.AssetRecord) error
	Delete(ctx context.Context, id int64) error
}

// AssetUpload describes a file to place in the asset hierarchy. When Extension
// is empty it is taken from Name.
type AssetUpload struct {
	Name      string
	Extension string
	ParentID  *int64
	Body      io.Reader
}

// AssetServicer defines the interface for asset operations.
type AssetServicer interface {
	CreateAsset(ctx context.Context, authorID int64, in AssetUpload) (*data.AssetRecord, error)
	GetAsset(ctx context.Context, id int64) (*data.AssetRecord, error)
	ResolveByPath(ctx context.Context, segments []string) (*data.AssetRecord, error)
	Open(asset *data.AssetRecord) (afero.File, error)
	DeleteAsset(ctx context.Context, authorID, id int64) error
}

// AssetService stores uploaded files as blobs and keeps their records.
type AssetService struct {
	repo   AssetRepository
	fs     afero.Fs
	log    logger.Logger
	newKey func() string
	now    func() time.Time
}

var _ AssetServicer = (*AssetService)(nil)

// NewAssetService creates an AssetService writing blobs to fs.
func NewAssetService(repo AssetRepository, fs afero.Fs, log logger.Logger) *AssetService {
	return &AssetService{
		repo:   repo,
		fs:     fs,
		log:    log,
		newKey: uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateAsset writes the upload to the blob store and records it for authorID.
func (s *AssetService) CreateAsset(ctx context.Context, authorID int64, in AssetUpload) (*data.AssetRecord, error) {
	name, ext := splitName(in.Name, in.Extension)
	if name == "" {
		return nil, validationErr("name", "must not be empty")
	}
	if strings.Contains(name+ext, "/") {
		return nil, validationErr("name", "must not contain '/'")
	}
	if in.ParentID != nil {
		if _, err := s.ownedAsset(ctx, authorID, *in.ParentID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, validationErr("parent_id", "parent asset does not exist")
			}
			return nil, err
		}
	}
	if _, err := s.repo.FindByName(ctx, name, ext, in.ParentID); err == nil {
		return nil, &ConflictError{Message: fmt.Sprintf("asset %s%s already exists here", name, ext)}
	} else if !errors.Is(err, data.ErrNotFound) {
		return nil, err
	}

	key := s.newKey() + ext
	body := in.Body
	if body == nil {
		body = strings.NewReader("")
	}
	if err := afero.WriteReader(s.fs, key, body); err != nil {
		return nil, fmt.Errorf("failed to write asset blob: %w", err)
	}

	asset := &data.AssetRecord{
		Name:      name,
		Extension: ext,
		ParentID:  in.ParentID,
		BlobKey:   key,
		AuthorID:  authorID,
		CreatedAt: s.now(),
	}
	if err := s.repo.Save(ctx, asset); err != nil {
		if rmErr := s.fs.Remove(key); rmErr != nil {
			s.log.Error(rmErr, "failed to remove orphaned asset blob "+key)
		}
		return nil, err
	}
	return asset, nil
}

// GetAsset returns an asset record by id.
func (s *AssetService) GetAsset(ctx context.Context, id int64) (*data.AssetRecord, error) {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return asset, nil
}

// ResolveByPath finds the asset at segments, e.g. ["docs", "logo.png"].
func (s *AssetService) ResolveByPath(ctx context.Context, segments []string) (*data.AssetRecord, error) {
	if len(segments) == 0 {
		return nil, ErrNotFound
	}
	var asset *data.AssetRecord
	var parentID *int64
	for _, segment := range segments {
		name, ext := splitName(segment, "")
		a, err := s.repo.FindByName(ctx, name, ext, parentID)
		if err != nil {
			return nil, translate(err)
		}
		asset = a
		parentID = &a.ID
	}
	return asset, nil
}

// Open returns a reader over the asset's blob. The caller closes it.
func (s *AssetService) Open(asset *data.AssetRecord) (afero.File, error) {
	f, err := s.fs.Open(asset.BlobKey)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// DeleteAsset removes an asset owned by authorID along with its blob. An asset
// that still has assets under it is a conflict.
func (s *AssetService) DeleteAsset(ctx context.Context, authorID, id int64) error {
	asset, err := s.ownedAsset(ctx, authorID, id)
	if err != nil {
		return err
	}
	hasChildren, err := s.repo.HasChildren(ctx, id)
	if err != nil {
		return err
	}
	if hasChildren {
		return &ConflictError{Message: fmt.Sprintf("asset %s has child assets", asset.Filename())}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err)
	}
	if err := s.fs.Remove(asset.BlobKey); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Error(err, "failed to remove asset blob "+asset.BlobKey)
	}
	return nil
}

func (s *AssetService) ownedAsset(ctx context.Context, authorID, id int64) (*data.AssetRecord, error) {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if asset.AuthorID != authorID {
		return nil, ErrNotFound
	}
	return asset, nil
}

// splitName separates "logo.png" into "logo" and ".png" unless ext is given.
func splitName(name, ext string) (string, string) {
	name = strings.TrimSpace(name)
	if ext != "" {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		return strings.TrimSuffix(name, ext), ext
	}
	ext = path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
