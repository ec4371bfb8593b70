// Package romloader reads BIOS and cartridge images from plain files or
// from ZIP, 7z, gzip, tar.gz and RAR archives.
package romloader

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Magic bytes for format detection
var (
	magicZIP    = []byte{0x50, 0x4B, 0x03, 0x04}
	magicZIPEnd = []byte{0x50, 0x4B, 0x05, 0x06} // empty zip
	magic7z     = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	magicGzip   = []byte{0x1F, 0x8B}
	magicRAR    = []byte{0x52, 0x61, 0x72, 0x21} // "Rar!"
)

// maxROMSize is the largest cartridge address space.
const maxROMSize = 32 * 1024 * 1024

var (
	// ErrNoROMFile is returned when no ROM file is found in an archive
	ErrNoROMFile = errors.New("no ROM file found in archive")

	// ErrUnsupportedFormat is returned for unrecognized file formats
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrFileTooLarge is returned when extracted content exceeds size limit
	ErrFileTooLarge = errors.New("file exceeds maximum size limit")

	// ErrBIOSSize is returned by LoadBIOS for an image of the wrong size.
	ErrBIOSSize = errors.New("unexpected BIOS size")
)

// Image is a loaded file.
type Image struct {
	Name  string // base name inside the archive or on disk
	Data  []byte
	CRC32 uint32 // IEEE CRC of Data
}

func newImage(name string, data []byte) *Image {
	return &Image{Name: name, Data: data, CRC32: crc32.ChecksumIEEE(data)}
}

type formatType int

const (
	formatUnknown formatType = iota
	formatRaw
	formatZIP
	format7z
	formatGzip
	formatRAR
)

// Load reads a ROM from a file path. Archives are recognised by magic
// bytes first and by extension second; the first entry matching one of
// extensions is extracted. A plain file must carry one of extensions.
func Load(path string, extensions []string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 16)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}
	header = header[:n]

	switch detectFormat(header, path, extensions) {
	case formatRaw:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to seek file: %w", err)
		}
		data, err := limitedRead(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read ROM: %w", err)
		}
		return newImage(filepath.Base(path), data), nil
	case formatZIP:
		return extractFromZIP(path, extensions)
	case format7z:
		return extractFrom7z(path, extensions)
	case formatGzip:
		return extractFromGzip(path, extensions)
	case formatRAR:
		return extractFromRAR(path, extensions)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadBIOS reads a BIOS image, plain or archived, and checks that it is
// exactly size bytes.
func LoadBIOS(path string, size int) (*Image, error) {
	img, err := Load(path, []string{".bin", ".rom", ".bios"})
	if err != nil {
		return nil, err
	}
	if len(img.Data) != size {
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d", ErrBIOSSize, img.Name, len(img.Data), size)
	}
	return img, nil
}

// detectFormat determines the file format based on magic bytes and extension.
func detectFormat(header []byte, path string, extensions []string) formatType {
	switch {
	case bytes.HasPrefix(header, magicZIP), bytes.HasPrefix(header, magicZIPEnd):
		return formatZIP
	case bytes.HasPrefix(header, magicRAR):
		return formatRAR
	case bytes.HasPrefix(header, magic7z):
		return format7z
	case bytes.HasPrefix(header, magicGzip):
		return formatGzip
	}

	lower := strings.ToLower(path)
	switch ext := filepath.Ext(lower); {
	case ext == ".zip":
		return formatZIP
	case ext == ".7z":
		return format7z
	case ext == ".gz", ext == ".tgz":
		return formatGzip
	case ext == ".rar":
		return formatRAR
	case isROMFile(lower, extensions):
		return formatRaw
	}
	return formatUnknown
}

// isROMFile checks if a filename has one of the given ROM extensions (case-insensitive)
func isROMFile(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, want := range extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// limitedRead reads from r up to maxROMSize bytes, returning an error if exceeded
func limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxROMSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxROMSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
