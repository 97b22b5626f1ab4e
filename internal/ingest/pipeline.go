// Package ingest imports an OLX bundle into a fresh course store.
//
// The import is a fixed sequence of stages, each one transaction:
//
//	schema -> context -> assets -> {html, problem, video}
//
// The leaf stages may run in any order. A failed stage rolls back its own
// transaction, leaves earlier stages committed and ends the import.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/olxstore/internal/config"
	"github.com/agentic-research/olxstore/internal/locator"
	"github.com/agentic-research/olxstore/internal/olx"
	"github.com/agentic-research/olxstore/internal/store"
	"github.com/rs/zerolog/log"
)

// ErrStageOrder is returned when a stage is run out of sequence or after
// a failure.
var ErrStageOrder = errors.New("stage out of order")

type State int

const (
	Uninitialized State = iota
	SchemaReady
	ContextReady
	AssetsLoaded
	ContentLoaded // some, not all, leaf kinds imported
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case SchemaReady:
		return "schema-ready"
	case ContextReady:
		return "context-ready"
	case AssetsLoaded:
		return "assets-loaded"
	case ContentLoaded:
		return "content-loaded"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats counts the rows written by a run.
type Stats struct {
	ConfigEntries int
	Assets        int
	AssetBytes    int64
	Items         map[string]int // by leaf kind
}

// Importer drives one import against one store. It is not safe for
// concurrent use.
type Importer struct {
	store  *store.Store
	bundle *olx.Bundle
	assets *config.Assets
	kinds  []LeafKind

	state     State
	loaded    map[string]bool
	course    locator.CourseKey
	contextID int64
	stats     Stats
}

// NewImporter prepares an import of bundle into s. The store must be new.
func NewImporter(s *store.Store, bundle *olx.Bundle, assets *config.Assets) *Importer {
	if assets == nil {
		assets = config.Default().Assets
	}
	return &Importer{
		store:  s,
		bundle: bundle,
		assets: assets,
		kinds:  LeafKinds,
		loaded: make(map[string]bool),
		stats:  Stats{Items: make(map[string]int)},
	}
}

func (im *Importer) State() State { return im.state }

func (im *Importer) Stats() Stats { return im.stats }

// CourseKey is valid once the context stage has run.
func (im *Importer) CourseKey() locator.CourseKey { return im.course }

// Run executes every stage in order and stops at the first error.
func (im *Importer) Run(ctx context.Context) error {
	start := time.Now()
	if err := im.InitSchema(ctx); err != nil {
		return err
	}
	if err := im.ImportContext(ctx); err != nil {
		return err
	}
	if err := im.ImportAssets(ctx); err != nil {
		return err
	}
	for _, k := range im.kinds {
		if err := im.ImportLeaf(ctx, k); err != nil {
			return err
		}
	}
	log.Info().
		Str("course", im.course.String()).
		Dur("elapsed", time.Since(start)).
		Msg("import complete")
	return nil
}

// InitSchema creates every table and registers the apps.
func (im *Importer) InitSchema(ctx context.Context) error {
	return im.stage(ctx, "schema", []State{Uninitialized}, func(ctx context.Context) error {
		if err := im.store.Initialize(ctx); err != nil {
			return err
		}
		im.state = SchemaReady
		return nil
	})
}

// stage runs fn when the importer is in one of the allowed states, logs its
// duration and marks the importer failed on error.
func (im *Importer) stage(ctx context.Context, name string, allowed []State, fn func(context.Context) error) error {
	ok := false
	for _, s := range allowed {
		if im.state == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("%s stage in state %s: %w", name, im.state, ErrStageOrder)
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		im.state = Failed
		log.Error().Err(err).Str("stage", name).Msg("stage failed")
		return fmt.Errorf("%s stage: %w", name, err)
	}
	log.Info().
		Str("stage", name).
		Str("state", im.state.String()).
		Dur("elapsed", time.Since(start)).
		Msg("stage complete")
	return nil
}
