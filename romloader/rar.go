package romloader

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/nwaples/rardecode/v2"
)

// extractFromRAR reads the first ROM entry of a RAR archive. RAR entries
// are streamed, so unlike zip and 7z there is no file table to scan.
func extractFromRAR(path string, extensions []string) (*Image, error) {
	r, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rar: %w", err)
	}
	defer r.Close()

	for {
		header, err := r.Next()
		if err == io.EOF {
			return nil, ErrNoROMFile
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read rar entry: %w", err)
		}
		if header.IsDir || !isROMFile(header.Name, extensions) {
			continue
		}

		data, err := limitedRead(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}
		return newImage(filepath.Base(header.Name), data), nil
	}
}
