package assets

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// File is one asset read into memory.
type File struct {
	Path string
	Data []byte
}

// Loader feeds files to one consumer in path order. With more than one
// worker, up to workers reads run ahead of the consumer.
type Loader struct {
	reader  Reader
	workers int
}

func NewLoader(r Reader, workers int) *Loader {
	if workers < 1 {
		workers = 1
	}
	return &Loader{reader: r, workers: workers}
}

func (l *Loader) Workers() int { return l.workers }

// Load reads every path and calls fn with the results in the order of
// paths. fn is never called concurrently. The first read or fn error
// stops the load and is returned.
func (l *Loader) Load(ctx context.Context, paths []string, fn func(File) error) error {
	if l.workers == 1 {
		for _, p := range paths {
			data, err := l.reader.ReadAsset(p)
			if err != nil {
				return err
			}
			if err := fn(File{Path: p, Data: data}); err != nil {
				return err
			}
		}
		return nil
	}
	return l.loadPooled(ctx, paths, fn)
}

type result struct {
	file File
	err  error
}

func (l *Loader) loadPooled(ctx context.Context, paths []string, fn func(File) error) error {
	g, gctx := errgroup.WithContext(ctx)

	// Each pending read owns a one-slot channel; the queue holds them in path
	// order. The consumer holds one more slot while it waits, so workers-1
	// queued slots keep at most workers reads in flight.
	pending := make(chan chan result, l.workers-1)

	g.Go(func() error {
		defer close(pending)
		for _, p := range paths {
			slot := make(chan result, 1)
			select {
			case pending <- slot:
			case <-gctx.Done():
				return gctx.Err()
			}
			go func(p string) {
				data, err := l.reader.ReadAsset(p)
				slot <- result{file: File{Path: p, Data: data}, err: err}
			}(p)
		}
		return nil
	})

	g.Go(func() error {
		for slot := range pending {
			var res result
			select {
			case res = <-slot:
			case <-gctx.Done():
				return gctx.Err()
			}
			if res.err != nil {
				return res.err
			}
			if err := fn(res.file); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
