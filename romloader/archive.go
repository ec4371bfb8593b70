package romloader

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"

	"github.com/bodgit/sevenzip"
)

// archiveFile is the entry API shared by archive/zip and sevenzip.
type archiveFile interface {
	FileInfo() fs.FileInfo
	Open() (io.ReadCloser, error)
}

// extractFirst reads the first regular entry with a ROM extension.
func extractFirst[F archiveFile](files []F, extensions []string) (*Image, error) {
	for _, f := range files {
		info := f.FileInfo()
		if info.IsDir() || !isROMFile(info.Name(), extensions) {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in archive: %w", info.Name(), err)
		}
		data, err := limitedRead(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", info.Name(), err)
		}
		return newImage(info.Name(), data), nil
	}
	return nil, ErrNoROMFile
}

func extractFromZIP(path string, extensions []string) (*Image, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()
	return extractFirst(r.File, extensions)
}

func extractFrom7z(path string, extensions []string) (*Image, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open 7z: %w", err)
	}
	defer r.Close()
	return extractFirst(r.File, extensions)
}
