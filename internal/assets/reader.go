// Package assets produces the bytes of static files for the asset importer.
//
// Every strategy satisfies Reader. Loader drives a Reader over a sorted
// list of paths and hands results to a single consumer in that order,
// whether or not the reads themselves run in parallel.
package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/config"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/sys/unix"
)

// Reader returns the full content of the file at a slash-separated path
// relative to the assets root.
type Reader interface {
	ReadAsset(path string) ([]byte, error)
}

// BufferedReader reads through a billy filesystem.
type BufferedReader struct {
	fs billy.Filesystem
}

func NewBufferedReader(fs billy.Filesystem) *BufferedReader {
	return &BufferedReader{fs: fs}
}

func (r *BufferedReader) ReadAsset(path string) ([]byte, error) {
	data, err := util.ReadFile(r.fs, filepath.FromSlash(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read asset %s: %w", api.ErrFilesystem, path, err)
	}
	return data, nil
}

// MmapReader maps each file read-only, copies it out and unmaps it. It needs
// the assets to live on the local disk under root.
type MmapReader struct {
	root string
}

func NewMmapReader(root string) *MmapReader {
	return &MmapReader{root: root}
}

func (r *MmapReader) ReadAsset(path string) ([]byte, error) {
	full := filepath.Join(r.root, filepath.FromSlash(path))
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("%w: open asset %s: %w", api.ErrFilesystem, path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat asset %s: %w", api.ErrFilesystem, path, err)
	}
	size := info.Size()
	if size == 0 {
		// mmap rejects zero-length mappings.
		return []byte{}, nil
	}
	if int64(int(size)) != size {
		return nil, fmt.Errorf("%w: asset %s too large to map (%d bytes)", api.ErrFilesystem, path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap asset %s: %w", api.ErrFilesystem, path, err)
	}
	out := make([]byte, len(data))
	copy(out, data)
	if err := unix.Munmap(data); err != nil {
		return nil, fmt.Errorf("munmap asset %s: %w", path, err)
	}
	return out, nil
}

// New builds the Loader for the configured strategy over the assets root.
func New(cfg *config.Assets, fs billy.Filesystem) (*Loader, error) {
	switch cfg.Strategy {
	case config.StrategyBuffered, "":
		return NewLoader(NewBufferedReader(fs), 1), nil
	case config.StrategyMmap:
		return NewLoader(NewMmapReader(fs.Root()), 1), nil
	case config.StrategyPooled:
		return NewLoader(NewBufferedReader(fs), cfg.Workers), nil
	default:
		return nil, fmt.Errorf("unknown asset strategy %q", cfg.Strategy)
	}
}
