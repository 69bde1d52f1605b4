package comic

import (
	"bytes"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// PageData is one decoded page image with a format hint. It only lives
// between decode and assembly; the archive is the durable form.
type PageData struct {
	Data []byte
	Ext  string
}

// DetectFormat sniffs the image format from magic bytes. Unknown content
// defaults to jpg, which is what every supported source serves.
func DetectFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "jpg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}):
		return "png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "gif"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	default:
		return "jpg"
	}
}

// Dimensions decodes the image header and reports pixel size.
func (p PageData) Dimensions() (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(p.Data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}
