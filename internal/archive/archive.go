package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
)

// Entry is one image file pulled out of an archive. Name keeps only the
// base name of the member; directory structure is flattened.
type Entry struct {
	Name string
	Data []byte
}

// ErrUnsupported is returned for archive types the service cannot open.
var ErrUnsupported = errors.New("unsupported archive type (supported: zip, 7z, tar, tar.gz)")

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// Extract opens the archive stored at filePath, identified by the original
// upload name, and returns its image members. Unsafe member names are
// skipped and counted, never extracted; members larger than memberLimit
// are skipped the same way.
func Extract(filePath, origName string, memberLimit int64) (entries []Entry, skipped int, err error) {
	switch {
	case hasSuffix(origName, ".zip"):
		return extractZip(filePath, memberLimit)
	case hasSuffix(origName, ".7z"):
		return extract7z(filePath, memberLimit)
	case hasSuffix(origName, ".tar"):
		return extractTar(filePath, false, memberLimit)
	case hasSuffix(origName, ".tar.gz"), hasSuffix(origName, ".tgz"):
		return extractTar(filePath, true, memberLimit)
	default:
		return nil, 0, fmt.Errorf("%q: %w", origName, ErrUnsupported)
	}
}

// IsSafeMemberName rejects member names that could escape the extraction
// scope: empty names, absolute paths, backslashes, Windows drive prefixes
// and any ".." path segment.
func IsSafeMemberName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasPrefix(name, "/") || strings.ContainsRune(name, '\\') {
		return false
	}
	if len(name) > 1 && name[1] == ':' {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// IsImageName reports whether the member name carries a recognised image
// extension.
func IsImageName(name string) bool {
	return imageExts[strings.ToLower(path.Ext(name))]
}

func hasSuffix(name, suffix string) bool {
	return strings.HasSuffix(strings.ToLower(name), suffix)
}

// wanted applies the member filters shared by all formats. It returns
// true when the member should be extracted and bumps *skipped for unsafe
// names.
func wanted(name string, skipped *int) bool {
	if !IsSafeMemberName(name) {
		*skipped++
		log.Printf("[archive] skipping unsafe member name %q", name)
		return false
	}
	return IsImageName(name)
}

func readMember(r io.Reader, name string, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("member %q exceeds size limit", name)
	}
	return data, nil
}

func extractZip(filePath string, memberLimit int64) ([]Entry, int, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	var entries []Entry
	var skipped int
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !wanted(f.Name, &skipped) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, skipped, fmt.Errorf("open zip member %q: %w", f.Name, err)
		}
		data, err := readMember(rc, f.Name, memberLimit)
		rc.Close()
		if err != nil {
			skipped++
			log.Printf("[archive] %v", err)
			continue
		}
		entries = append(entries, Entry{Name: path.Base(f.Name), Data: data})
	}
	return entries, skipped, nil
}

func extract7z(filePath string, memberLimit int64) ([]Entry, int, error) {
	sz, err := sevenzip.OpenReader(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("open 7z: %w", err)
	}
	defer sz.Close()

	var entries []Entry
	var skipped int
	for _, f := range sz.File {
		if f.FileInfo().IsDir() || !wanted(f.Name, &skipped) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, skipped, fmt.Errorf("open 7z member %q: %w", f.Name, err)
		}
		data, err := readMember(rc, f.Name, memberLimit)
		rc.Close()
		if err != nil {
			skipped++
			log.Printf("[archive] %v", err)
			continue
		}
		entries = append(entries, Entry{Name: path.Base(f.Name), Data: data})
	}
	return entries, skipped, nil
}

func extractTar(filePath string, gzipped bool, memberLimit int64) ([]Entry, int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("open tar: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, 0, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	var entries []Entry
	var skipped int
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg || !wanted(hdr.Name, &skipped) {
			continue
		}
		data, err := readMember(tr, hdr.Name, memberLimit)
		if err != nil {
			skipped++
			log.Printf("[archive] %v", err)
			continue
		}
		entries = append(entries, Entry{Name: path.Base(hdr.Name), Data: data})
	}
	return entries, skipped, nil
}
