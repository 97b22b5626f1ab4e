package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agentic-research/olxstore/api"
)

// Item is a context binding joined with the content it points at.
type Item struct {
	api.ContextItem
	Content api.ContentItem
}

func (s *Store) Apps(ctx context.Context) ([]api.App, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, version, url FROM app ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query apps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.App
	for rows.Next() {
		var a api.App
		var url sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.Version, &url); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		a.URL = url.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// Context returns the single context of the store.
func (s *Store) Context(ctx context.Context) (*api.Context, error) {
	var c api.Context
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ext_id, type, version, title FROM context ORDER BY id LIMIT 1`,
	).Scan(&c.ID, &c.ExtID, &c.Type, &c.Version, &c.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("context: %w", api.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query context: %w", err)
	}
	return &c, nil
}

// ConfigEntries returns the config rows of a context in key order.
func (s *Store) ConfigEntries(ctx context.Context, contextID int64) ([]api.ConfigEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT context_id, key, value FROM course_config WHERE context_id = ? ORDER BY key`,
		contextID,
	)
	if err != nil {
		return nil, fmt.Errorf("query config: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.ConfigEntry
	for rows.Next() {
		var e api.ConfigEntry
		if err := rows.Scan(&e.ContextID, &e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Asset returns one asset file, content included.
func (s *Store) Asset(ctx context.Context, filePath string) (*api.AssetFile, error) {
	var a api.AssetFile
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_path, size, mime_type, content FROM asset_file WHERE file_path = ?`,
		filePath,
	).Scan(&a.ID, &a.FilePath, &a.Size, &a.MimeType, &a.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", filePath, api.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query asset %s: %w", filePath, err)
	}
	return &a, nil
}

// Assets lists asset metadata in insertion order, without content.
func (s *Store) Assets(ctx context.Context) ([]api.AssetFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_path, size, mime_type FROM asset_file ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.AssetFile
	for rows.Next() {
		var a api.AssetFile
		if err := rows.Scan(&a.ID, &a.FilePath, &a.Size, &a.MimeType); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const itemColumns = `
	ci.context_id, ci.item_id, ci.natural_key, ci.slug,
	it.id, it.natural_key, it.type, it.title, it.definition
FROM context_item ci
JOIN content_item it ON it.id = ci.item_id`

func scanItem(sc interface{ Scan(...any) error }) (*Item, error) {
	var i Item
	var nk sql.NullString
	err := sc.Scan(
		&i.ContextID, &i.ItemID, &i.NaturalKey, &i.Slug,
		&i.Content.ID, &nk, &i.Content.Type, &i.Content.Title, &i.Content.Definition,
	)
	if err != nil {
		return nil, err
	}
	i.Content.NaturalKey = nk.String
	return &i, nil
}

// ItemByLocator resolves a context-scoped natural key to its content.
func (s *Store) ItemByLocator(ctx context.Context, contextID int64, naturalKey string) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT`+itemColumns+` WHERE ci.context_id = ? AND ci.natural_key = ?`,
		contextID, naturalKey,
	)
	i, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", naturalKey, api.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query item %s: %w", naturalKey, err)
	}
	return i, nil
}

// ContextItems lists every binding of a context in insertion order.
func (s *Store) ContextItems(ctx context.Context, contextID int64) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+itemColumns+` WHERE ci.context_id = ? ORDER BY ci.rowid`,
		contextID,
	)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}
