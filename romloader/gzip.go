package romloader

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractFromGzip reads a plain .gz ROM or the first ROM of a tar.gz.
func extractFromGzip(path string, extensions []string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gr.Close()

	name := filepath.Base(path)
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		return extractFromTar(gr, extensions)
	}

	data, err := limitedRead(gr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress gzip: %w", err)
	}
	if strings.HasSuffix(lower, ".gz") {
		name = name[:len(name)-3]
	}
	return newImage(name, data), nil
}

func extractFromTar(r io.Reader, extensions []string) (*Image, error) {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, ErrNoROMFile
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg || !isROMFile(header.Name, extensions) {
			continue
		}

		data, err := limitedRead(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from tar: %w", header.Name, err)
		}
		return newImage(filepath.Base(header.Name), data), nil
	}
}
