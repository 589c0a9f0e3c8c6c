package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const assetColumns = `id, name, extension, parent_id, blob_key, author_id, created_at`

// AssetRepository handles database operations for asset records.
type AssetRepository struct {
	DB *sqlx.DB
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{DB: db}
}

// FindByName finds an asset by name and extension under parentID.
// A nil parentID selects top-level assets.
func (r *AssetRepository) FindByName(ctx context.Context, name, extension string, parentID *int64) (*AssetRecord, error) {
	var asset AssetRecord
	var err error
	if parentID == nil {
		query := r.DB.Rebind(`SELECT ` + assetColumns + ` FROM assets WHERE name = ? AND extension = ? AND parent_id IS NULL ORDER BY id LIMIT 1`)
		err = r.DB.GetContext(ctx, &asset, query, name, extension)
	} else {
		query := r.DB.Rebind(`SELECT ` + assetColumns + ` FROM assets WHERE name = ? AND extension = ? AND parent_id = ? ORDER BY id LIMIT 1`)
		err = r.DB.GetContext(ctx, &asset, query, name, extension, *parentID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset '%s%s': %w", name, extension, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find asset by name: %w", err)
	}
	return &asset, nil
}

// GetByID finds an asset by its ID.
func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*AssetRecord, error) {
	var asset AssetRecord
	query := r.DB.Rebind(`SELECT ` + assetColumns + ` FROM assets WHERE id = ?`)
	if err := r.DB.GetContext(ctx, &asset, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset with id %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get asset by id: %w", err)
	}
	return &asset, nil
}

// Save creates a new asset record and sets asset.ID.
func (r *AssetRepository) Save(ctx context.Context, asset *AssetRecord) error {
	query := `INSERT INTO assets (name, extension, parent_id, blob_key, author_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	id, err := insertReturningID(ctx, r.DB, query, asset.Name, asset.Extension, asset.ParentID, asset.BlobKey, asset.AuthorID, asset.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}
	asset.ID = id
	return nil
}

// HasChildren reports whether any asset sits under id.
func (r *AssetRepository) HasChildren(ctx context.Context, id int64) (bool, error) {
	var count int
	query := r.DB.Rebind(`SELECT COUNT(*) FROM assets WHERE parent_id = ?`)
	if err := r.DB.GetContext(ctx, &count, query, id); err != nil {
		return false, fmt.Errorf("failed to count child assets: %w", err)
	}
	return count > 0, nil
}

// Delete removes an asset record.
func (r *AssetRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM assets WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return expectRow(result, "asset", id)
}
