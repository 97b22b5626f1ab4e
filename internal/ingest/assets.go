package ingest

import (
	"context"
	"database/sql"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/assets"
	"github.com/agentic-research/olxstore/internal/store"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// ImportAssets stores every file under static/ in path order. Reads may run
// on a worker pool depending on the configured strategy; inserts all go
// through the one stage transaction.
func (im *Importer) ImportAssets(ctx context.Context) error {
	return im.stage(ctx, "assets", []State{ContextReady}, func(ctx context.Context) error {
		files, err := im.bundle.StaticFiles()
		if err != nil {
			return err
		}
		staticFS, err := im.bundle.StaticFS()
		if err != nil {
			return err
		}
		loader, err := assets.New(im.assets, staticFS)
		if err != nil {
			return err
		}

		var count int
		var total int64
		err = im.store.RunTx(ctx, func(tx *sql.Tx) error {
			return loader.Load(ctx, files, func(f assets.File) error {
				mime := mimetype.Detect(f.Data).String()
				if _, err := store.InsertAsset(ctx, tx, api.AssetFile{
					FilePath: f.Path,
					MimeType: &mime,
					Content:  f.Data,
				}); err != nil {
					return err
				}
				count++
				total += int64(len(f.Data))
				return nil
			})
		})
		if err != nil {
			return err
		}

		im.stats.Assets = count
		im.stats.AssetBytes = total
		im.state = AssetsLoaded
		log.Info().
			Int("files", count).
			Str("size", humanize.Bytes(uint64(total))).
			Str("strategy", im.assets.Strategy).
			Int("workers", loader.Workers()).
			Msg("assets stored")
		return nil
	})
}
