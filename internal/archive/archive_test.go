package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, members map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	p := filepath.Join(t.TempDir(), "test.zip")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o600))
	return p
}

func writeTarGz(t *testing.T, members map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range members {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o600,
			Size:     int64(len(data)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	p := filepath.Join(t.TempDir(), "test.tar.gz")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o600))
	return p
}

func TestExtractZip(t *testing.T) {
	a := assert.New(t)

	p := writeZip(t, map[string][]byte{
		"album/one.jpg": []byte("jpg-bytes"),
		"album/two.PNG": []byte("png-bytes"),
		"notes.txt":     []byte("not an image"),
	})

	entries, skipped, err := Extract(p, "album.zip", 1<<20)
	a.NoError(err)
	a.Equal(0, skipped)
	a.Len(entries, 2)

	byName := map[string][]byte{}
	for _, e := range entries {
		byName[e.Name] = e.Data
	}
	a.Equal([]byte("jpg-bytes"), byName["one.jpg"])
	a.Equal([]byte("png-bytes"), byName["two.PNG"])
}

func TestExtractZipSkipsUnsafeNames(t *testing.T) {
	a := assert.New(t)

	p := writeZip(t, map[string][]byte{
		"../escape.jpg":    []byte("x"),
		"/abs.jpg":         []byte("x"),
		"ok/../sneaky.jpg": []byte("x"),
		"fine.jpg":         []byte("fine"),
	})

	entries, skipped, err := Extract(p, "a.zip", 1<<20)
	a.NoError(err)
	a.Equal(3, skipped)
	a.Len(entries, 1)
	a.Equal("fine.jpg", entries[0].Name)
}

func TestExtractZipMemberLimit(t *testing.T) {
	a := assert.New(t)

	p := writeZip(t, map[string][]byte{
		"big.jpg":   bytes.Repeat([]byte("x"), 64),
		"small.jpg": []byte("ok"),
	})

	entries, skipped, err := Extract(p, "a.zip", 16)
	a.NoError(err)
	a.Equal(1, skipped)
	a.Len(entries, 1)
	a.Equal("small.jpg", entries[0].Name)
}

func TestExtractTarGz(t *testing.T) {
	a := assert.New(t)

	p := writeTarGz(t, map[string][]byte{
		"pics/a.webp": []byte("webp-bytes"),
		"pics/b.gif":  []byte("gif-bytes"),
		"README":      []byte("nope"),
	})

	entries, skipped, err := Extract(p, "pics.tar.gz", 1<<20)
	a.NoError(err)
	a.Equal(0, skipped)
	a.Len(entries, 2)
}

func TestExtractUnsupported(t *testing.T) {
	a := assert.New(t)

	_, _, err := Extract("/nonexistent", "file.rar", 1<<20)
	a.ErrorIs(err, ErrUnsupported)
}

func TestIsSafeMemberName(t *testing.T) {
	a := assert.New(t)

	a.True(IsSafeMemberName("a.jpg"))
	a.True(IsSafeMemberName("dir/sub/a.jpg"))
	a.False(IsSafeMemberName(""))
	a.False(IsSafeMemberName("/etc/passwd"))
	a.False(IsSafeMemberName(`\\server\share.jpg`))
	a.False(IsSafeMemberName(`dir\a.jpg`))
	a.False(IsSafeMemberName("C:/windows.jpg"))
	a.False(IsSafeMemberName("../a.jpg"))
	a.False(IsSafeMemberName("dir/../../a.jpg"))
}

func TestIsImageName(t *testing.T) {
	a := assert.New(t)

	a.True(IsImageName("a.jpg"))
	a.True(IsImageName("a.JPEG"))
	a.True(IsImageName("a.png"))
	a.True(IsImageName("a.gif"))
	a.True(IsImageName("a.webp"))
	a.False(IsImageName("a.txt"))
	a.False(IsImageName("a"))
	a.False(IsImageName("a.jpg.exe"))
}
