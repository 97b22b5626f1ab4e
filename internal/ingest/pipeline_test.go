package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/config"
	"github.com/agentic-research/olxstore/internal/olx"
	"github.com/agentic-research/olxstore/internal/store"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pngBytes = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01"

// scenarioFiles is the smallest interesting bundle.
func scenarioFiles() map[string]string {
	return map[string]string{
		"course.xml":      `<course org="X" course="Y" url_name="Z"/>`,
		"course/Z.xml":    `<course display_name="T" extra="v1"><chapter url_name="c"/></course>`,
		"static/img.png":  pngBytes,
		"html/intro.xml":  `<html display_name="Intro" filename="intro"/>`,
		"html/intro.html": "<p>hi</p>",
	}
}

// richFiles adds nested assets, marker files and every leaf kind.
func richFiles() map[string]string {
	f := scenarioFiles()
	f["course/Z.xml"] = `<course display_name="T" start="2024-01-01T00:00:00Z" extra="v1" advanced_modules="[&quot;lti&quot;]"/>`
	f["static/.DS_Store"] = "junk"
	f["static/css/site.css"] = "body { margin: 0 }"
	f["static/handouts/syllabus.txt"] = "week 1"
	f["static/empty.bin"] = ""
	f["html/about.xml"] = `<html filename="about"/>`
	f["html/about.html"] = "<h1>About</h1>"
	f["problem/q1.xml"] = `<problem display_name="Question 1" max_attempts="2"><multiplechoiceresponse/></problem>`
	f["problem/q2.xml"] = `<problem><stringresponse answer="x"/></problem>`
	f["video/lecture.xml"] = `<video display_name="Lecture" youtube_id_1_0="abc"/>`
	return f
}

func memBundle(t *testing.T, files map[string]string) *olx.Bundle {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return olx.New(fs)
}

func diskBundle(t *testing.T, files map[string]string) *olx.Bundle {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	b, err := olx.OpenDir(dir)
	require.NoError(t, err)
	return b
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Create(context.Background(), filepath.Join(t.TempDir(), "course.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func count(t *testing.T, s *store.Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func TestScenario(t *testing.T) {
	s := newStore(t)
	im := NewImporter(s, memBundle(t, scenarioFiles()), nil)
	require.NoError(t, im.Run(context.Background()))
	assert.Equal(t, Done, im.State())

	ctx := context.Background()
	c, err := s.Context(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.ID)
	assert.Equal(t, "course-v1:X+Y+Z", c.ExtID)
	assert.Equal(t, "course", c.Type)
	require.NotNil(t, c.Title)
	assert.Equal(t, "T", *c.Title)
	assert.Equal(t, 1, count(t, s, "context"))

	entries, err := s.ConfigEntries(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []api.ConfigEntry{{ContextID: 1, Key: "extra", Value: "v1"}}, entries)

	assets, err := s.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "img.png", assets[0].FilePath)
	assert.Equal(t, int64(len(pngBytes)), assets[0].Size)
	require.NotNil(t, assets[0].MimeType)
	assert.Equal(t, "image/png", *assets[0].MimeType)

	item, err := s.ItemByLocator(ctx, c.ID, "block-v1:X+Y+Z+type@html+block@intro")
	require.NoError(t, err)
	assert.Equal(t, "intro", item.Content.NaturalKey)
	assert.Equal(t, "xblock/html", item.Content.Type)
	require.NotNil(t, item.Content.Title)
	assert.Equal(t, "Intro", *item.Content.Title)
	assert.Equal(t, []byte("<p>hi</p>"), item.Content.Definition)
	assert.Nil(t, item.Slug)

	assert.Equal(t, 1, count(t, s, "content_item"))
	assert.Equal(t, 1, count(t, s, "context_item"))
	assert.Equal(t, 0, count(t, s, "content_item_child"))

	apps, err := s.Apps(ctx)
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestRichBundle(t *testing.T) {
	s := newStore(t)
	files := richFiles()
	im := NewImporter(s, memBundle(t, files), nil)
	require.NoError(t, im.Run(context.Background()))

	ctx := context.Background()
	c, err := s.Context(ctx)
	require.NoError(t, err)

	entries, err := s.ConfigEntries(ctx, c.ID)
	require.NoError(t, err)
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"advanced_modules", "extra", "start"}, keys)
	assert.Equal(t, `["lti"]`, entries[0].Value)

	// Every asset except the marker file, byte identical, in path order.
	assets, err := s.Assets(ctx)
	require.NoError(t, err)
	var paths []string
	for _, a := range assets {
		paths = append(paths, a.FilePath)
		full, err := s.Asset(ctx, a.FilePath)
		require.NoError(t, err)
		assert.Equal(t, files["static/"+a.FilePath], string(full.Content))
		assert.Equal(t, int64(len(full.Content)), full.Size)
	}
	assert.Equal(t, []string{"css/site.css", "empty.bin", "handouts/syllabus.txt", "img.png"}, paths)

	items, err := s.ContextItems(ctx, c.ID)
	require.NoError(t, err)
	var keysByOrder []string
	for _, it := range items {
		keysByOrder = append(keysByOrder, it.NaturalKey)
	}
	assert.Equal(t, []string{
		"block-v1:X+Y+Z+type@html+block@about",
		"block-v1:X+Y+Z+type@html+block@intro",
		"block-v1:X+Y+Z+type@problem+block@q1",
		"block-v1:X+Y+Z+type@problem+block@q2",
		"block-v1:X+Y+Z+type@video+block@lecture",
	}, keysByOrder)

	about := items[0].Content
	assert.Nil(t, about.Title)
	assert.Equal(t, "<h1>About</h1>", string(about.Definition))

	q2 := items[3].Content
	assert.Equal(t, "xblock/problem", q2.Type)
	assert.Nil(t, q2.Title)
	assert.Equal(t, files["problem/q2.xml"], string(q2.Definition))

	stats := im.Stats()
	assert.Equal(t, 4, stats.Assets)
	assert.Equal(t, map[string]int{"html": 2, "problem": 2, "video": 1}, stats.Items)
}

// dump renders every row of every table in insertion order.
func dump(t *testing.T, s *store.Store) string {
	t.Helper()
	var b strings.Builder
	for _, table := range []string{
		"app", "context", "course_config", "asset_file",
		"content_item", "content_item_child", "context_item",
	} {
		rows, err := s.DB().Query("SELECT * FROM " + table + " ORDER BY rowid")
		require.NoError(t, err)
		cols, err := rows.Columns()
		require.NoError(t, err)
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			require.NoError(t, rows.Scan(ptrs...))
			fmt.Fprintf(&b, "%s %q\n", table, fmt.Sprint(vals...))
		}
		require.NoError(t, rows.Err())
		_ = rows.Close()
	}
	return b.String()
}

func TestReimportIsDeterministic(t *testing.T) {
	files := richFiles()
	for i := 0; i < 40; i++ {
		files[fmt.Sprintf("static/bulk/f%02d.txt", i)] = strings.Repeat("x", i*97)
	}

	var dumps []string
	for _, strategy := range []string{
		config.StrategyBuffered, config.StrategyBuffered, config.StrategyMmap, config.StrategyPooled,
	} {
		s := newStore(t)
		im := NewImporter(s, diskBundle(t, files), &config.Assets{Strategy: strategy, Workers: 4})
		require.NoError(t, im.Run(context.Background()), strategy)
		dumps = append(dumps, dump(t, s))
	}
	for i := 1; i < len(dumps); i++ {
		assert.Equal(t, dumps[0], dumps[i])
	}
}

func TestStemSharedAcrossKinds(t *testing.T) {
	files := scenarioFiles()
	files["html/foo.xml"] = `<html display_name="Foo page"/>`
	files["html/foo.html"] = "<p>foo</p>"
	files["problem/foo.xml"] = `<problem display_name="Foo problem"/>`

	s := newStore(t)
	require.NoError(t, NewImporter(s, memBundle(t, files), nil).Run(context.Background()))

	ctx := context.Background()
	html, err := s.ItemByLocator(ctx, 1, "block-v1:X+Y+Z+type@html+block@foo")
	require.NoError(t, err)
	problem, err := s.ItemByLocator(ctx, 1, "block-v1:X+Y+Z+type@problem+block@foo")
	require.NoError(t, err)

	// Both content items keep the bare stem; the binding keys tell them apart.
	assert.Equal(t, "foo", html.Content.NaturalKey)
	assert.Equal(t, "foo", problem.Content.NaturalKey)
	assert.NotEqual(t, html.ItemID, problem.ItemID)
	assert.Equal(t, "xblock/html", html.Content.Type)
	assert.Equal(t, "xblock/problem", problem.Content.Type)
}

func TestRepeatedBindingIsUniquenessViolation(t *testing.T) {
	s := newStore(t)
	im := NewImporter(s, memBundle(t, scenarioFiles()), nil)
	require.NoError(t, im.Run(context.Background()))

	ctx := context.Background()
	err := s.RunTx(ctx, func(tx *sql.Tx) error {
		itemID, err := store.InsertContentItem(ctx, tx, api.ContentItem{NaturalKey: "intro", Type: "xblock/html"})
		if err != nil {
			return err
		}
		return store.InsertContextItem(ctx, tx, api.ContextItem{
			ContextID: 1, ItemID: itemID, NaturalKey: "block-v1:X+Y+Z+type@html+block@intro",
		})
	})
	assert.ErrorIs(t, err, api.ErrUniqueness)
	assert.Equal(t, 1, count(t, s, "content_item"))
}

func TestFailedLeafStageRollsBackOnlyItself(t *testing.T) {
	files := richFiles()
	delete(files, "html/intro.html")

	s := newStore(t)
	im := NewImporter(s, memBundle(t, files), nil)
	err := im.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrFilesystem)
	assert.Equal(t, Failed, im.State())

	// Earlier stages stay committed; html wrote nothing.
	assert.Equal(t, 1, count(t, s, "context"))
	assert.Equal(t, 4, count(t, s, "asset_file"))
	assert.Equal(t, 0, count(t, s, "content_item"))
	assert.Equal(t, 0, count(t, s, "context_item"))

	// Failure is terminal.
	assert.ErrorIs(t, im.ImportLeaf(context.Background(), Problem), ErrStageOrder)
}

func TestStageOrder(t *testing.T) {
	s := newStore(t)
	im := NewImporter(s, memBundle(t, richFiles()), nil)
	ctx := context.Background()

	assert.ErrorIs(t, im.ImportContext(ctx), ErrStageOrder)
	require.NoError(t, im.InitSchema(ctx))
	assert.ErrorIs(t, im.InitSchema(ctx), ErrStageOrder)
	assert.ErrorIs(t, im.ImportAssets(ctx), ErrStageOrder)
	assert.ErrorIs(t, im.ImportLeaf(ctx, HTML), ErrStageOrder)

	require.NoError(t, im.ImportContext(ctx))
	assert.Equal(t, ContextReady, im.State())
	assert.Equal(t, "course-v1:X+Y+Z", im.CourseKey().String())
	require.NoError(t, im.ImportAssets(ctx))
	assert.Equal(t, AssetsLoaded, im.State())

	// Leaf kinds in any order.
	require.NoError(t, im.ImportLeaf(ctx, Video))
	assert.Equal(t, ContentLoaded, im.State())
	assert.ErrorIs(t, im.ImportLeaf(ctx, Video), ErrStageOrder)
	require.NoError(t, im.ImportLeaf(ctx, HTML))
	assert.Equal(t, ContentLoaded, im.State())
	require.NoError(t, im.ImportLeaf(ctx, Problem))
	assert.Equal(t, Done, im.State())

	// A rejected call does not fail the import.
	assert.Equal(t, 5, count(t, s, "context_item"))
}

func TestContextErrors(t *testing.T) {
	cases := map[string]struct {
		mutate func(map[string]string)
		want   error
	}{
		"missing course.xml": {
			mutate: func(f map[string]string) { delete(f, "course.xml") },
			want:   api.ErrFilesystem,
		},
		"missing run descriptor": {
			mutate: func(f map[string]string) { delete(f, "course/Z.xml") },
			want:   api.ErrFilesystem,
		},
		"malformed run descriptor": {
			mutate: func(f map[string]string) { f["course/Z.xml"] = `<course display_name="T"` },
			want:   api.ErrDescriptorParse,
		},
		"missing org": {
			mutate: func(f map[string]string) { f["course.xml"] = `<course course="Y" url_name="Z"/>` },
			want:   api.ErrDescriptorParse,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			files := scenarioFiles()
			tc.mutate(files)
			s := newStore(t)
			im := NewImporter(s, memBundle(t, files), nil)
			err := im.Run(context.Background())
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, Failed, im.State())
			assert.Equal(t, 0, count(t, s, "context"))
			// Schema stage committed before the failure.
			assert.Equal(t, 2, count(t, s, "app"))
		})
	}
}

func TestMissingRunTitle(t *testing.T) {
	files := scenarioFiles()
	files["course/Z.xml"] = `<course extra="v1"/>`
	s := newStore(t)
	require.NoError(t, NewImporter(s, memBundle(t, files), nil).Run(context.Background()))

	c, err := s.Context(context.Background())
	require.NoError(t, err)
	assert.Nil(t, c.Title)
}

func TestReservedStemIsAddressingError(t *testing.T) {
	files := scenarioFiles()
	files["problem/a+b.xml"] = `<problem/>`
	s := newStore(t)
	err := NewImporter(s, memBundle(t, files), nil).Run(context.Background())
	assert.ErrorIs(t, err, api.ErrAddressing)
}

func TestMalformedLeafDescriptor(t *testing.T) {
	for name, descriptor := range map[string]string{
		"unclosed":      `<video display_name="V">`,
		"trailing text": `<video display_name="V"/>garbage`,
	} {
		t.Run(name, func(t *testing.T) {
			files := scenarioFiles()
			files["video/v.xml"] = descriptor
			s := newStore(t)
			err := NewImporter(s, memBundle(t, files), nil).Run(context.Background())
			assert.ErrorIs(t, err, api.ErrDescriptorParse)
			// html ran before video and stays committed.
			assert.Equal(t, 1, count(t, s, "context_item"))
		})
	}
}

func TestTrailingTextInRunDescriptor(t *testing.T) {
	files := scenarioFiles()
	files["course/Z.xml"] = `<course display_name="T"/>trailing`
	s := newStore(t)
	err := NewImporter(s, memBundle(t, files), nil).Run(context.Background())
	assert.ErrorIs(t, err, api.ErrDescriptorParse)
	assert.Equal(t, 0, count(t, s, "context"))
}

func TestUnicodeStem(t *testing.T) {
	files := scenarioFiles()
	files["problem/café_intro.xml"] = `<problem display_name="Café"/>`
	s := newStore(t)
	require.NoError(t, NewImporter(s, memBundle(t, files), nil).Run(context.Background()))

	item, err := s.ItemByLocator(context.Background(), 1, "block-v1:X+Y+Z+type@problem+block@café_intro")
	require.NoError(t, err)
	assert.Equal(t, "café_intro", item.Content.NaturalKey)
}

func TestMissingContentDirs(t *testing.T) {
	files := map[string]string{
		"course.xml":   `<course org="X" course="Y" url_name="Z"/>`,
		"course/Z.xml": `<course display_name="Empty"/>`,
	}
	s := newStore(t)
	im := NewImporter(s, memBundle(t, files), nil)
	require.NoError(t, im.Run(context.Background()))
	assert.Equal(t, Done, im.State())
	assert.Equal(t, 0, count(t, s, "asset_file"))
	assert.Equal(t, 0, count(t, s, "content_item"))
}
