package comic

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPages(n int) []PageData {
	pages := make([]PageData, n)
	for i := range pages {
		pages[i] = PageData{Data: append([]byte{0xff, 0xd8, 0xff}, byte(i)), Ext: "jpg"}
	}
	return pages
}

func readZip(t *testing.T, path string) map[string][]byte {
	t.Helper()

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := map[string][]byte{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		out[f.Name] = data
	}
	return out
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":          FormatCBZ,
		"cbz":       FormatCBZ,
		"CBZ":       FormatCBZ,
		"dir":       FormatDir,
		"directory": FormatDir,
		"epub":      FormatEPUB,
	} {
		got, err := ParseFormat(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCBZ(t *testing.T) {
	meta := Metadata{Title: "Test Issue", Series: "Test", Source: "webtoon"}
	path := filepath.Join(t.TempDir(), "issue.cbz")

	require.NoError(t, Write(meta, testPages(3), path, FormatCBZ))

	files := readZip(t, path)
	require.Len(t, files, 5)

	// Pages are named so the zip entry order is reading order.
	assert.Equal(t, testPages(3)[0].Data, files["page_000.jpg"])
	assert.Equal(t, testPages(3)[1].Data, files["page_001.jpg"])
	assert.Equal(t, testPages(3)[2].Data, files["page_002.jpg"])

	assert.Contains(t, string(files["ComicInfo.xml"]), "<Title>Test Issue</Title>")

	var got Metadata
	require.NoError(t, json.Unmarshal(files["comicfetch.json"], &got))
	assert.Equal(t, meta, got)

	// No temp artifact left behind.
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteDir(t *testing.T) {
	meta := Metadata{Title: "Test Issue"}
	path := filepath.Join(t.TempDir(), "issue")

	require.NoError(t, Write(meta, testPages(2), path, FormatDir))

	for _, name := range []string{"page_000.jpg", "page_001.jpg", "ComicInfo.xml", "comicfetch.json"} {
		_, err := os.Stat(filepath.Join(path, name))
		assert.NoError(t, err, name)
	}
}

func TestWriteDirReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issue")
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "stale.jpg"), []byte("old"), 0644))

	require.NoError(t, Write(Metadata{Title: "x"}, testPages(1), path, FormatDir))

	_, err := os.Stat(filepath.Join(path, "stale.jpg"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(path, "page_000.jpg"))
	assert.NoError(t, err)
}

func TestWriteCBZReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issue.cbz")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0644))

	require.NoError(t, Write(Metadata{Title: "x"}, testPages(1), path, FormatCBZ))

	files := readZip(t, path)
	assert.Contains(t, files, "page_000.jpg")
}

func TestWriteEPUB(t *testing.T) {
	meta := Metadata{
		Title:   "Test Issue",
		Authors: []Author{{Name: "Someone", Role: "writer"}},
		Summary: "blurb",
	}
	path := filepath.Join(t.TempDir(), "issue.epub")

	require.NoError(t, Write(meta, testPages(2), path, FormatEPUB))

	// An epub is a zip; spot-check the container landed intact.
	files := readZip(t, path)
	assert.Contains(t, files, "mimetype")
	assert.Equal(t, "application/epub+zip", string(files["mimetype"]))
}

func TestWriteCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Pub", "Series", "issue.cbz")
	require.NoError(t, Write(Metadata{Title: "x"}, testPages(1), path, FormatCBZ))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWritePageNameFallsBackToSniffedFormat(t *testing.T) {
	pages := []PageData{{Data: []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}}}
	path := filepath.Join(t.TempDir(), "issue.cbz")

	require.NoError(t, Write(Metadata{Title: "x"}, pages, path, FormatCBZ))

	files := readZip(t, path)
	assert.Contains(t, files, "page_000.png")
}
