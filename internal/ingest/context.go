package ingest

import (
	"context"
	"database/sql"
	"sort"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/store"
	"github.com/rs/zerolog/log"
)

const (
	contextType = "course"
	// No publishing step exists yet to stamp a real version.
	contextVersion = "unpublished"
)

// ImportContext creates the context row from course.xml and
// course/<run>.xml. The run's display_name becomes the title; every other
// attribute becomes a config entry, inserted in key order.
func (im *Importer) ImportContext(ctx context.Context) error {
	return im.stage(ctx, "context", []State{SchemaReady}, func(ctx context.Context) error {
		key, err := im.bundle.CourseKey()
		if err != nil {
			return err
		}
		attrs, err := im.bundle.RunAttributes(key.Run)
		if err != nil {
			return err
		}

		var title *string
		if v, ok := attrs["display_name"]; ok {
			title = &v
			delete(attrs, "display_name")
		}
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var contextID int64
		err = im.store.RunTx(ctx, func(tx *sql.Tx) error {
			var err error
			contextID, err = store.InsertContext(ctx, tx, api.Context{
				ExtID:   key.String(),
				Type:    contextType,
				Version: contextVersion,
				Title:   title,
			})
			if err != nil {
				return err
			}
			for _, k := range keys {
				if err := store.InsertConfigEntry(ctx, tx, api.ConfigEntry{
					ContextID: contextID,
					Key:       k,
					Value:     attrs[k],
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		im.course = key
		im.contextID = contextID
		im.stats.ConfigEntries = len(keys)
		im.state = ContextReady
		log.Debug().
			Str("course", key.String()).
			Int("config_entries", len(keys)).
			Msg("context created")
		return nil
	})
}
