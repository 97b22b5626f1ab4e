// Package olx reads an OLX course export laid out as
//
//	course.xml            org, course and url_name (the run)
//	course/<run>.xml      attributes of the run
//	static/**             assets
//	html/*.xml            descriptors, each with html/<stem>.html
//	problem/*.xml
//	video/*.xml
//
// The layout is fixed. The bundle is read through a billy.Filesystem so
// tests can use an in-memory tree.
package olx

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentic-research/olxstore/api"
	"github.com/agentic-research/olxstore/internal/locator"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

const (
	CourseFile = "course.xml"
	RunDir     = "course"
	StaticDir  = "static"
)

// osMarkers are files operating systems drop into directories.
var osMarkers = map[string]bool{
	".DS_Store":   true,
	"Thumbs.db":   true,
	"desktop.ini": true,
}

type Bundle struct {
	fs billy.Filesystem
}

func New(fs billy.Filesystem) *Bundle {
	return &Bundle{fs: fs}
}

// OpenDir opens a bundle stored in a directory on disk.
func OpenDir(dir string) (*Bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", api.ErrFilesystem, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", api.ErrFilesystem, dir)
	}
	return New(osfs.New(dir)), nil
}

func (b *Bundle) FS() billy.Filesystem { return b.fs }

// StaticFS is the assets subtree, rooted at static/.
func (b *Bundle) StaticFS() (billy.Filesystem, error) {
	fs, err := b.fs.Chroot(StaticDir)
	if err != nil {
		return nil, fmt.Errorf("%w: chroot %s: %w", api.ErrFilesystem, StaticDir, err)
	}
	return fs, nil
}

// ReadFile reads a file relative to the bundle root.
func (b *Bundle) ReadFile(name string) ([]byte, error) {
	data, err := util.ReadFile(b.fs, name)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", api.ErrFilesystem, name, err)
	}
	return data, nil
}

func (b *Bundle) readDescriptor(name string) (*Element, error) {
	data, err := b.ReadFile(name)
	if err != nil {
		return nil, err
	}
	el, err := ParseRoot(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return el, nil
}

// CourseKey reads org, course and url_name from course.xml.
func (b *Bundle) CourseKey() (locator.CourseKey, error) {
	el, err := b.readDescriptor(CourseFile)
	if err != nil {
		return locator.CourseKey{}, err
	}
	var parts [3]string
	for i, name := range []string{"org", "course", "url_name"} {
		v, ok := el.Attr(name)
		if !ok {
			return locator.CourseKey{}, fmt.Errorf("%w: %s: missing %s attribute", api.ErrDescriptorParse, CourseFile, name)
		}
		parts[i] = v
	}
	return locator.NewCourseKey(parts[0], parts[1], parts[2])
}

// RunAttributes returns every attribute of course/<run>.xml.
func (b *Bundle) RunAttributes(run string) (map[string]string, error) {
	el, err := b.readDescriptor(path.Join(RunDir, run+".xml"))
	if err != nil {
		return nil, err
	}
	return el.Attrs, nil
}

// Descriptor parses a descriptor of the given kind.
func (b *Bundle) Descriptor(kind, stem string) (*Element, []byte, error) {
	name := path.Join(kind, stem+".xml")
	data, err := b.ReadFile(name)
	if err != nil {
		return nil, nil, err
	}
	el, err := ParseRoot(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return el, data, nil
}

// Descriptors lists the stems of <kind>/*.xml in sorted order. A missing
// directory has no descriptors.
func (b *Bundle) Descriptors(kind string) ([]string, error) {
	entries, err := b.fs.ReadDir(kind)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: list %s: %w", api.ErrFilesystem, kind, err)
	}
	var stems []string
	for _, e := range entries {
		if !b.isFile(path.Join(kind, e.Name()), e) {
			continue
		}
		if stem, ok := strings.CutSuffix(e.Name(), ".xml"); ok && stem != "" {
			stems = append(stems, stem)
		}
	}
	sort.Strings(stems)
	return stems, nil
}

// StaticFiles lists the regular files under static/ as slash-separated
// paths relative to static/, sorted, skipping OS marker files. A missing
// static/ directory has no files.
func (b *Bundle) StaticFiles() ([]string, error) {
	if _, err := b.fs.Stat(StaticDir); os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", api.ErrFilesystem, StaticDir, err)
	}

	var files []string
	err := util.Walk(b.fs, StaticDir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || osMarkers[info.Name()] || !b.isFile(p, info) {
			return nil
		}
		rel, err := filepath.Rel(StaticDir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", api.ErrFilesystem, StaticDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// isFile reports whether info is a regular file, following symlinks.
func (b *Bundle) isFile(p string, info os.FileInfo) bool {
	if info.Mode()&os.ModeSymlink != 0 {
		st, err := b.fs.Stat(p)
		return err == nil && st.Mode().IsRegular()
	}
	return info.Mode().IsRegular()
}
