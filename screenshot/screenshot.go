// Package screenshot converts frames to images and PNG files.
package screenshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/image/draw"

	"github.com/user-none/egba/storage"
)

// Image converts an ARGB32 frame of width x height pixels to an RGBA
// image.
func Image(frame []uint32, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 || len(frame) < width*height {
		return nil, fmt.Errorf("frame holds %d pixels, need %dx%d", len(frame), width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, px := range frame[:width*height] {
		o := i * 4
		img.Pix[o] = byte(px >> 16)
		img.Pix[o+1] = byte(px >> 8)
		img.Pix[o+2] = byte(px)
		img.Pix[o+3] = byte(px >> 24)
	}
	return img, nil
}

// Scale enlarges img by an integer factor with nearest-neighbour sampling
// so pixel edges stay sharp.
func Scale(img image.Image, factor int) image.Image {
	if factor <= 1 {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Encode writes the frame as a PNG scaled by factor.
func Encode(w io.Writer, frame []uint32, width, height, factor int) error {
	img, err := Image(frame, width, height)
	if err != nil {
		return err
	}
	if err := png.Encode(w, Scale(img, factor)); err != nil {
		return fmt.Errorf("failed to encode screenshot: %w", err)
	}
	return nil
}

// Save writes the frame as a PNG to path, replacing it atomically.
func Save(path string, frame []uint32, width, height, factor int) error {
	var buf bytes.Buffer
	if err := Encode(&buf, frame, width, height, factor); err != nil {
		return err
	}
	return storage.AtomicWriteFile(path, buf.Bytes())
}

// SaveForGame writes the frame to the screenshot directory under a
// per-game folder, named by Unix time. It returns the file path.
func SaveForGame(gameCRC uint32, frame []uint32, width, height, factor int) (string, error) {
	baseDir, err := storage.GetScreenshotDir()
	if err != nil {
		return "", err
	}
	name := strconv.FormatInt(time.Now().Unix(), 10) + ".png"
	path := filepath.Join(baseDir, fmt.Sprintf("%08X", gameCRC), name)
	if err := Save(path, frame, width, height, factor); err != nil {
		return "", err
	}
	return path, nil
}

// Digest returns the IEEE CRC32 of the frame's pixels in little-endian
// byte order. Equal frames have equal digests on every host.
func Digest(frame []uint32) uint32 {
	h := crc32.NewIEEE()
	var b [4]byte
	for _, px := range frame {
		binary.LittleEndian.PutUint32(b[:], px)
		h.Write(b[:])
	}
	return h.Sum32()
}
