package store

import (
	"context"
	"fmt"

	"github.com/agentic-research/olxstore/api"
)

// InsertContext inserts a context row and returns its id.
func InsertContext(ctx context.Context, tx DBTX, c api.Context) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO context (ext_id, type, version, title) VALUES (?, ?, ?, ?)`,
		c.ExtID, c.Type, c.Version, c.Title,
	)
	if err != nil {
		return 0, fmt.Errorf("insert context %s: %w", c.ExtID, classify(err))
	}
	return res.LastInsertId()
}

func InsertConfigEntry(ctx context.Context, tx DBTX, e api.ConfigEntry) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO course_config (context_id, key, value) VALUES (?, ?, ?)`,
		e.ContextID, e.Key, e.Value,
	); err != nil {
		return fmt.Errorf("insert config %s: %w", e.Key, classify(err))
	}
	return nil
}

// InsertAsset inserts one asset file. Size is taken from the content.
func InsertAsset(ctx context.Context, tx DBTX, a api.AssetFile) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO asset_file (file_path, size, mime_type, content) VALUES (?, ?, ?, ?)`,
		a.FilePath, int64(len(a.Content)), a.MimeType, nonNil(a.Content),
	)
	if err != nil {
		return 0, fmt.Errorf("insert asset %s: %w", a.FilePath, classify(err))
	}
	return res.LastInsertId()
}

func InsertContentItem(ctx context.Context, tx DBTX, it api.ContentItem) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO content_item (natural_key, type, title, definition) VALUES (?, ?, ?, ?)`,
		it.NaturalKey, it.Type, it.Title, nonNil(it.Definition),
	)
	if err != nil {
		return 0, fmt.Errorf("insert content item %s: %w", it.NaturalKey, classify(err))
	}
	return res.LastInsertId()
}

// InsertContextItem binds an item into a context. A repeated natural key or
// slug within the context fails with api.ErrUniqueness.
func InsertContextItem(ctx context.Context, tx DBTX, ci api.ContextItem) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO context_item (context_id, item_id, natural_key, slug) VALUES (?, ?, ?, ?)`,
		ci.ContextID, ci.ItemID, ci.NaturalKey, ci.Slug,
	); err != nil {
		return fmt.Errorf("bind %s: %w", ci.NaturalKey, classify(err))
	}
	return nil
}

// nonNil keeps empty files and bodies as zero-length blobs rather than NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
