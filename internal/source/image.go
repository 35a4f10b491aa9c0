package source

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	diskfs "github.com/diskfs/go-diskfs"
)

// OpenImage opens a set stored in the filesystem of a disk image (ISO 9660,
// FAT32 and the other formats go-diskfs reads). member is the absolute
// path of the .shp file inside the image; when empty the first .shp in the
// root directory is used.
func OpenImage(image, member string) (*Set, error) {
	if _, err := os.Stat(image); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, image)
	}
	d, err := diskfs.Open(image, diskfs.WithOpenMode(diskfs.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", image, err)
	}
	defer d.Close()

	fsys, err := d.GetFilesystem(0)
	if err != nil {
		return nil, fmt.Errorf("read filesystem of %s: %w", image, err)
	}

	if member == "" {
		entries, err := fsys.ReadDir("/")
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", image, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, "/"+e.Name())
			}
		}
		if member, err = firstGeometry(names); err != nil {
			return nil, fmt.Errorf("%s: %w", image, err)
		}
	}
	if !path.IsAbs(member) {
		member = "/" + member
	}

	members := make(map[string][]byte)
	for _, ext := range []string{ExtGeometry, ExtIndex, ExtAttributes, ExtCodePage} {
		for _, name := range []string{swapExt(member, ext), swapExt(member, strings.ToUpper(ext))} {
			f, err := fsys.OpenFile(name, os.O_RDONLY)
			if err != nil {
				// go-diskfs reports missing files with untyped errors
				continue
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("read %s from %s: %w", name, image, err)
			}
			members[name] = data
			break
		}
	}
	return memberSet(members, member)
}
