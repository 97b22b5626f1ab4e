package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/config"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// diskAssets writes files under a temp dir and returns the dir.
func diskAssets(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func collect(t *testing.T, l *Loader, paths []string) []File {
	t.Helper()
	var got []File
	require.NoError(t, l.Load(context.Background(), paths, func(f File) error {
		got = append(got, f)
		return nil
	}))
	return got
}

var sample = map[string]string{
	"img.png":       "\x89PNG\r\n\x1a\n....",
	"css/site.css":  "body { color: red; }",
	"empty.txt":     "",
	"a/b/c/deep.js": "console.log(1)",
}

var samplePaths = []string{"a/b/c/deep.js", "css/site.css", "empty.txt", "img.png"}

func TestStrategiesAgree(t *testing.T) {
	dir := diskAssets(t, sample)
	fs := osfs.New(dir)

	for _, strategy := range []string{config.StrategyBuffered, config.StrategyMmap, config.StrategyPooled} {
		t.Run(strategy, func(t *testing.T) {
			l, err := New(&config.Assets{Strategy: strategy, Workers: 3}, fs)
			require.NoError(t, err)

			got := collect(t, l, samplePaths)
			require.Len(t, got, len(samplePaths))
			for i, f := range got {
				assert.Equal(t, samplePaths[i], f.Path)
				assert.Equal(t, sample[f.Path], string(f.Data))
			}
		})
	}
}

func TestNewUnknownStrategy(t *testing.T) {
	_, err := New(&config.Assets{Strategy: "lazy"}, memfs.New())
	assert.Error(t, err)
}

func TestBufferedReaderMemfs(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "x/y.txt", []byte("hello"), 0o644))

	data, err := NewBufferedReader(fs).ReadAsset("x/y.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = NewBufferedReader(fs).ReadAsset("missing.txt")
	assert.ErrorIs(t, err, api.ErrFilesystem)
}

func TestMmapReaderMissing(t *testing.T) {
	_, err := NewMmapReader(t.TempDir()).ReadAsset("missing.bin")
	assert.ErrorIs(t, err, api.ErrFilesystem)
}

// slowReader returns its input after a delay that shrinks with the index,
// so later paths finish first.
type slowReader struct {
	n        int
	inFlight atomic.Int32
	peak     atomic.Int32
	failOn   string
}

func (r *slowReader) ReadAsset(path string) ([]byte, error) {
	cur := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if cur <= p || r.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	var idx int
	_, _ = fmt.Sscanf(path, "f%03d", &idx)
	time.Sleep(time.Duration(r.n-idx) * 200 * time.Microsecond)
	if path == r.failOn {
		return nil, fmt.Errorf("%w: %s", api.ErrFilesystem, path)
	}
	return []byte(path), nil
}

func pathsN(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("f%03d", i)
	}
	return out
}

func TestPooledPreservesOrder(t *testing.T) {
	paths := pathsN(50)
	r := &slowReader{n: len(paths)}
	got := collect(t, NewLoader(r, 4), paths)

	require.Len(t, got, len(paths))
	for i, f := range got {
		assert.Equal(t, paths[i], f.Path)
		assert.Equal(t, paths[i], string(f.Data))
	}
	assert.LessOrEqual(t, r.peak.Load(), int32(4))
}

func TestPooledReadError(t *testing.T) {
	paths := pathsN(20)
	r := &slowReader{n: len(paths), failOn: "f007"}

	var seen []string
	err := NewLoader(r, 4).Load(context.Background(), paths, func(f File) error {
		seen = append(seen, f.Path)
		return nil
	})
	require.ErrorIs(t, err, api.ErrFilesystem)
	assert.Equal(t, paths[:7], seen)
}

func TestConsumerErrorStopsLoad(t *testing.T) {
	boom := errors.New("boom")
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			paths := pathsN(30)
			calls := 0
			err := NewLoader(&slowReader{n: len(paths)}, workers).Load(context.Background(), paths, func(f File) error {
				calls++
				if calls == 3 {
					return boom
				}
				return nil
			})
			assert.ErrorIs(t, err, boom)
			assert.Equal(t, 3, calls)
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	for _, workers := range []int{1, 4} {
		got := collect(t, NewLoader(&slowReader{}, workers), nil)
		assert.Empty(t, got)
	}
}
