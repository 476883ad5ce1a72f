package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
)

// File is one raw input destined for the training archive.
type File struct {
	Name string
	Data []byte
}

// DefaultExtension is used when an input filename carries no extension.
const DefaultExtension = "jpg"

// BuildArchive compresses the files into a single ZIP buffer. Entries are
// named image_<index>.<ext> from the input order, so duplicate original
// filenames can never collide. Input bytes are written verbatim.
func BuildArchive(files []File) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for i, file := range files {
		w, err := zw.Create(entryName(i, file.Name))
		if err != nil {
			return nil, fmt.Errorf("zip: create entry %d: %w", i, err)
		}
		if _, err := w.Write(file.Data); err != nil {
			return nil, fmt.Errorf("zip: write entry %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func entryName(index int, original string) string {
	ext := strings.TrimPrefix(path.Ext(strings.TrimSpace(original)), ".")
	if ext == "" {
		ext = DefaultExtension
	}
	return fmt.Sprintf("image_%d.%s", index, strings.ToLower(ext))
}
