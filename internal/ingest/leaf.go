package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"path"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/locator"
	"github.com/agentic-research/olxstore/internal/olx"
	"github.com/agentic-research/olxstore/internal/store"
	"github.com/rs/zerolog/log"
)

// DefinitionFunc returns the definition payload for a descriptor.
type DefinitionFunc func(b *olx.Bundle, kind, stem string, descriptor []byte) ([]byte, error)

// LeafKind is a content kind with no children of its own.
type LeafKind struct {
	Name       string
	Definition DefinitionFunc
}

// ItemType is the content_item.type of the kind, e.g. "xblock/html".
func (k LeafKind) ItemType() string { return "xblock/" + k.Name }

// PairedBody uses <kind>/<stem><ext> as the definition.
func PairedBody(ext string) DefinitionFunc {
	return func(b *olx.Bundle, kind, stem string, _ []byte) ([]byte, error) {
		return b.ReadFile(path.Join(kind, stem+ext))
	}
}

// SelfDefinition uses the descriptor itself as the definition.
func SelfDefinition(_ *olx.Bundle, _, _ string, descriptor []byte) ([]byte, error) {
	return descriptor, nil
}

var (
	HTML    = LeafKind{Name: "html", Definition: PairedBody(".html")}
	Problem = LeafKind{Name: "problem", Definition: SelfDefinition}
	Video   = LeafKind{Name: "video", Definition: SelfDefinition}

	LeafKinds = []LeafKind{HTML, Problem, Video}
)

// ImportLeaf stores every <kind>/*.xml descriptor in stem order as a content
// item bound into the context under its locator.
func (im *Importer) ImportLeaf(ctx context.Context, kind LeafKind) error {
	if im.loaded[kind.Name] {
		return fmt.Errorf("%s stage already ran: %w", kind.Name, ErrStageOrder)
	}
	return im.stage(ctx, kind.Name, []State{AssetsLoaded, ContentLoaded}, func(ctx context.Context) error {
		stems, err := im.bundle.Descriptors(kind.Name)
		if err != nil {
			return err
		}

		err = im.store.RunTx(ctx, func(tx *sql.Tx) error {
			for _, stem := range stems {
				if err := im.importBlock(ctx, tx, kind, stem); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		im.loaded[kind.Name] = true
		im.stats.Items[kind.Name] = len(stems)
		im.state = ContentLoaded
		if im.allLoaded() {
			im.state = Done
		}
		log.Debug().Str("kind", kind.Name).Int("items", len(stems)).Msg("content stored")
		return nil
	})
}

func (im *Importer) importBlock(ctx context.Context, tx *sql.Tx, kind LeafKind, stem string) error {
	naturalKey, err := locator.Compose(im.course, kind.Name, stem)
	if err != nil {
		return fmt.Errorf("%s/%s: %w", kind.Name, stem, err)
	}
	el, descriptor, err := im.bundle.Descriptor(kind.Name, stem)
	if err != nil {
		return err
	}
	definition, err := kind.Definition(im.bundle, kind.Name, stem, descriptor)
	if err != nil {
		return err
	}

	itemID, err := store.InsertContentItem(ctx, tx, api.ContentItem{
		NaturalKey: stem,
		Type:       kind.ItemType(),
		Title:      el.Title(),
		Definition: definition,
	})
	if err != nil {
		return err
	}
	return store.InsertContextItem(ctx, tx, api.ContextItem{
		ContextID:  im.contextID,
		ItemID:     itemID,
		NaturalKey: naturalKey,
	})
}

func (im *Importer) allLoaded() bool {
	for _, k := range im.kinds {
		if !im.loaded[k.Name] {
			return false
		}
	}
	return true
}
