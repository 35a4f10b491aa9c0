package source

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// tar compression by file suffix
var tarSuffixes = []struct {
	suffix      string
	compression string
}{
	{".tar", "none"},
	{".tar.gz", "gzip"},
	{".tgz", "gzip"},
	{".tar.zst", "zstd"},
	{".tar.zstd", "zstd"},
	{".tar.xz", "xz"},
	{".txz", "xz"},
	{".tar.lz4", "lz4"},
}

// tarCompression returns the compression of a tar archive name, or ""
// when the name is not a tar archive
func tarCompression(name string) string {
	for _, s := range tarSuffixes {
		if strings.HasSuffix(name, s.suffix) {
			return s.compression
		}
	}
	return ""
}

func openZip(name, member string) (*Set, error) {
	zr, err := zip.OpenReader(name)
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", name, err)
	}
	defer zr.Close()

	members := make(map[string][]byte)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !wanted(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open zip member %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read zip member %s: %w", f.Name, err)
		}
		members[f.Name] = data
	}
	return memberSet(members, member)
}

// decompress wraps r according to the compression name. The returned
// function releases decoder resources.
func decompress(r io.Reader, compression string) (io.Reader, func(), error) {
	switch compression {
	case "none":
		return r, func() {}, nil
	case "gzip":
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return gr, func() { gr.Close() }, nil
	case "zstd":
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	case "xz":
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return xr, func() {}, nil
	case "lz4":
		return lz4.NewReader(r), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown compression %q", compression)
}

func openTar(name, member string) (*Set, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	compression := tarCompression(strings.ToLower(name))
	r, release, err := decompress(f, compression)
	if err != nil {
		return nil, fmt.Errorf("open %s (%s): %w", name, compression, err)
	}
	defer release()

	members, err := readTar(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return memberSet(members, member)
}

func readTar(r io.Reader) (map[string][]byte, error) {
	tr := tar.NewReader(r)
	members := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return members, nil
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg || !wanted(hdr.Name) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", hdr.Name, err)
		}
		members[hdr.Name] = data
	}
}
