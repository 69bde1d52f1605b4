package comic

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"
)

// Format selects the output container for an assembled issue.
type Format int

const (
	FormatCBZ Format = iota
	FormatDir
	FormatEPUB
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cbz":
		return FormatCBZ, nil
	case "dir", "directory":
		return FormatDir, nil
	case "epub":
		return FormatEPUB, nil
	default:
		return FormatCBZ, fmt.Errorf("unknown output format %q (want cbz, dir or epub)", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatDir:
		return "dir"
	case FormatEPUB:
		return "epub"
	default:
		return "cbz"
	}
}

// Ext returns the suffix appended to the templated output path.
func (f Format) Ext() string {
	switch f {
	case FormatDir:
		return ""
	case FormatEPUB:
		return ".epub"
	default:
		return ".cbz"
	}
}

const tmpSuffix = ".tmp"

// Write assembles an issue at path. Pages must already be in reading
// order. The artifact is built next to the final path and moved into place
// with a single rename, so an interrupted run never leaves a partial file
// where a reader would find it. An existing artifact is only replaced once
// the new one is complete.
func Write(meta Metadata, pages []PageData, path string, format Format) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + tmpSuffix
	_ = os.RemoveAll(tmp)

	var err error
	switch format {
	case FormatDir:
		err = writeDir(meta, pages, tmp)
	case FormatEPUB:
		err = writeEPUB(meta, pages, tmp)
	default:
		err = writeCBZ(meta, pages, tmp)
	}
	if err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	if format == FormatDir {
		// Rename cannot replace a non-empty directory.
		if err := os.RemoveAll(path); err != nil {
			_ = os.RemoveAll(tmp)
			return err
		}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.RemoveAll(tmp)
		return err
	}

	return nil
}

func pageName(i int, p PageData) string {
	ext := p.Ext
	if ext == "" {
		ext = DetectFormat(p.Data)
	}
	return fmt.Sprintf("page_%03d.%s", i, ext)
}

func writeCBZ(meta Metadata, pages []PageData, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	z := zip.NewWriter(out)

	write := func(name string, data []byte) error {
		// Images are already compressed, so store them as-is.
		w, err := z.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	for i, p := range pages {
		if err := write(pageName(i, p), p.Data); err != nil {
			_ = z.Close()
			_ = out.Close()
			return err
		}
	}

	if err := writeMetadataFiles(meta, pages, write); err != nil {
		_ = z.Close()
		_ = out.Close()
		return err
	}

	if err := z.Close(); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

func writeDir(meta Metadata, pages []PageData, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	write := func(name string, data []byte) error {
		return os.WriteFile(filepath.Join(dir, name), data, 0644)
	}

	for i, p := range pages {
		if err := write(pageName(i, p), p.Data); err != nil {
			return err
		}
	}

	return writeMetadataFiles(meta, pages, write)
}

func writeEPUB(meta Metadata, pages []PageData, path string) error {
	e, err := epub.NewEpub(meta.DisplayTitle())
	if err != nil {
		return err
	}
	if len(meta.Authors) > 0 {
		e.SetAuthor(meta.Authors[0].Name)
	}
	if meta.Summary != "" {
		e.SetDescription(meta.Summary)
	}

	// go-epub ingests images by file path, so spool pages first.
	spool, err := os.MkdirTemp("", "comicfetch-epub-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(spool)

	var html strings.Builder
	for i, p := range pages {
		name := pageName(i, p)
		file := filepath.Join(spool, name)
		if err := os.WriteFile(file, p.Data, 0644); err != nil {
			return err
		}
		internal, err := e.AddImage(file, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(&html, `<div class="page"><img src="%s" alt="Page %d"/></div>%s`, internal, i, "\n")
	}

	if _, err := e.AddSection(html.String(), meta.DisplayTitle(), "", ""); err != nil {
		return err
	}

	return e.Write(path)
}

func writeMetadataFiles(meta Metadata, pages []PageData, write func(string, []byte) error) error {
	info, err := meta.ComicInfo(pages)
	if err != nil {
		return err
	}
	if err := write("ComicInfo.xml", info); err != nil {
		return err
	}

	doc, err := meta.JSON()
	if err != nil {
		return err
	}

	return write("comicfetch.json", doc)
}
