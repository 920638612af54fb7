package archive

import (
	"bytes"
	"fmt"
	"os"

	"github.com/klauspost/compress/zip"
)

// Read loads the whole archive into memory. Build archives are bounded by the
// size of an application bundle, so no streaming is done.
func Read(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	return data, nil
}

type Entry struct {
	Name             string
	CompressedSize   uint64
	UncompressedSize uint64
}

type Summary struct {
	Entries          []Entry
	CompressedSize   uint64
	UncompressedSize uint64
}

// Describe lists the entries of a zip payload. It reads only the central
// directory; entry contents are not decompressed or checked.
func Describe(data []byte) (Summary, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Summary{}, fmt.Errorf("open zip: %w", err)
	}
	var summary Summary
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		summary.Entries = append(summary.Entries, Entry{
			Name:             f.Name,
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
		})
		summary.CompressedSize += f.CompressedSize64
		summary.UncompressedSize += f.UncompressedSize64
	}
	return summary, nil
}
