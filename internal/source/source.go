// Package source locates and opens a shapefile set: the geometry file,
// its index, its attribute table and the optional code page file. Sets can
// come from plain files, directories, zip and tar archives, or disk images.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Common errors
var (
	ErrFileNotFound = errors.New("file not found")
	ErrBadExtension = errors.New("bad file extension")
)

const (
	ExtGeometry   = ".shp"
	ExtIndex      = ".shx"
	ExtAttributes = ".dbf"
	ExtCodePage   = ".cpg"
)

// File is one member of a set
type File struct {
	Name string
	Data io.ReaderAt
	Size int64
}

// Reader returns a sequential reader over the whole file
func (f File) Reader() io.Reader { return io.NewSectionReader(f.Data, 0, f.Size) }

// Set is an opened shapefile set
type Set struct {
	Name     string // Geometry file name
	Geometry File
	Index    *File // nil when the set has no index
	Table    File
	CodePage string // Trimmed .cpg content, empty when absent

	closers []io.Closer
}

// Close releases the files backing the set
func (s *Set) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Files returns the members of the set in a fixed order
func (s *Set) Files() []File {
	files := []File{s.Geometry}
	if s.Index != nil {
		files = append(files, *s.Index)
	}
	files = append(files, s.Table)
	if s.CodePage != "" {
		files = append(files, File{
			Name: swapExt(s.Geometry.Name, ExtCodePage),
			Data: strings.NewReader(s.CodePage),
			Size: int64(len(s.CodePage)),
		})
	}
	return files
}

// Open opens a set from location, which may name a .shp file, a directory, a
// zip archive or a tar archive (optionally gzip, zstd, xz or lz4
// compressed). member selects the geometry file inside a directory or
// archive; when empty the first .shp member is used.
func Open(location, member string) (*Set, error) {
	info, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, location)
	}
	if info.IsDir() {
		return openDir(location, member)
	}

	lower := strings.ToLower(location)
	switch {
	case strings.HasSuffix(lower, ExtGeometry):
		return openDir(filepath.Dir(location), filepath.Base(location))
	case strings.HasSuffix(lower, ".zip"):
		return openZip(location, member)
	case tarCompression(lower) != "":
		return openTar(location, member)
	}
	return nil, fmt.Errorf("%w: %s is not a %s file or a supported archive",
		ErrBadExtension, filepath.Base(location), ExtGeometry)
}

// lookup opens a member by name; ok is false when it does not exist
type lookup func(name string) (f File, ok bool, err error)

// assemble builds a set around the geometry member name
func assemble(name string, open lookup) (*Set, error) {
	if !strings.EqualFold(path.Ext(name), ExtGeometry) {
		return nil, fmt.Errorf("%w: %s does not end in %s", ErrBadExtension, name, ExtGeometry)
	}

	shp, ok, err := open(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, name)
	}
	set := &Set{Name: name, Geometry: shp}

	dbf, ok, err := openCompanion(name, ExtAttributes, open)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, swapExt(name, ExtAttributes))
	}
	set.Table = dbf

	shx, ok, err := openCompanion(name, ExtIndex, open)
	if err != nil {
		return nil, err
	}
	if ok {
		set.Index = &shx
	}

	cpg, ok, err := openCompanion(name, ExtCodePage, open)
	if err != nil {
		return nil, err
	}
	if ok {
		data, err := io.ReadAll(cpg.Reader())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", cpg.Name, err)
		}
		set.CodePage = strings.TrimSpace(string(data))
	}
	return set, nil
}

// openCompanion tries the lower and upper case variants of ext
func openCompanion(name, ext string, open lookup) (File, bool, error) {
	for _, e := range []string{ext, strings.ToUpper(ext)} {
		f, ok, err := open(swapExt(name, e))
		if err != nil || ok {
			return f, ok, err
		}
	}
	return File{}, false, nil
}

func swapExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

// firstGeometry returns the alphabetically first .shp name
func firstGeometry(names []string) (string, error) {
	var found []string
	for _, n := range names {
		if strings.EqualFold(path.Ext(n), ExtGeometry) {
			found = append(found, n)
		}
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%w: no %s file", ErrFileNotFound, ExtGeometry)
	}
	sort.Strings(found)
	return found[0], nil
}

func openDir(dir, member string) (*Set, error) {
	if member == "" {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read directory: %w", err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		if member, err = firstGeometry(names); err != nil {
			return nil, fmt.Errorf("%s: %w", dir, err)
		}
	}

	var opened []io.Closer
	set, err := assemble(member, func(name string) (File, bool, error) {
		p := filepath.Join(dir, name)
		f, err := os.Open(p)
		if errors.Is(err, os.ErrNotExist) {
			return File{}, false, nil
		}
		if err != nil {
			return File{}, false, fmt.Errorf("open %s: %w", p, err)
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return File{}, false, fmt.Errorf("stat %s: %w", p, err)
		}
		opened = append(opened, f)
		return File{Name: name, Data: f, Size: info.Size()}, true, nil
	})
	if err != nil {
		for _, c := range opened {
			c.Close()
		}
		return nil, err
	}
	set.closers = opened
	return set, nil
}

// memberSet assembles a set from fully loaded archive members. Member
// names are matched case-insensitively.
func memberSet(members map[string][]byte, member string) (*Set, error) {
	byName := make(map[string]string, len(members))
	names := make([]string, 0, len(members))
	for n := range members {
		byName[strings.ToLower(n)] = n
		names = append(names, n)
	}
	if member == "" {
		var err error
		if member, err = firstGeometry(names); err != nil {
			return nil, err
		}
	}
	return assemble(member, func(name string) (File, bool, error) {
		actual, ok := byName[strings.ToLower(name)]
		if !ok {
			return File{}, false, nil
		}
		data := members[actual]
		return File{Name: actual, Data: bytes.NewReader(data), Size: int64(len(data))}, true, nil
	})
}

// wanted reports whether an archive member belongs to a shapefile set
func wanted(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ExtGeometry, ExtIndex, ExtAttributes, ExtCodePage:
		return true
	}
	return false
}

// Extract copies every member of the set into dir and returns the paths written
func Extract(set *Set, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, f := range set.Files() {
		outputPath := filepath.Join(dir, path.Base(f.Name))
		out, err := os.Create(outputPath)
		if err != nil {
			return written, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		if _, err := io.Copy(out, f.Reader()); err != nil {
			out.Close()
			return written, fmt.Errorf("failed to write %s: %w", outputPath, err)
		}
		if err := out.Close(); err != nil {
			return written, fmt.Errorf("failed to close %s: %w", outputPath, err)
		}
		written = append(written, outputPath)
	}
	return written, nil
}
