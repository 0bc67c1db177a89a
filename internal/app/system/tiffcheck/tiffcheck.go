// internal/app/system/tiffcheck/tiffcheck.go
package tiffcheck

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/image/tiff"
)

var (
	// ErrNotTIFF means the bytes do not start with a TIFF or BigTIFF header.
	ErrNotTIFF = errors.New("not a TIFF file")
	// ErrTruncated means the header promises a directory the file does not contain.
	ErrTruncated = errors.New("truncated TIFF file")
)

const (
	leClassic = "II\x2A\x00"
	beClassic = "MM\x00\x2A"
	leBig     = "II\x2B\x00"
	beBig     = "MM\x00\x2B"
)

// Info is what the header reveals about a file.
type Info struct {
	ByteOrder string `json:"byteOrder"` // "II" or "MM"
	BigTIFF   bool   `json:"bigTiff"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	// Warning is set when the file is a TIFF whose layout the decoder does
	// not understand (BigTIFF, float samples, extra bands). Such files are
	// still accepted; the backend does the real raster work.
	Warning string `json:"warning,omitempty"`
}

// Sniff inspects the header and first image directory of r. Only the
// bytes it needs are read.
func Sniff(r io.ReaderAt) (Info, error) {
	magic := make([]byte, 4)
	if _, err := r.ReadAt(magic, 0); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Info{}, ErrNotTIFF
		}
		return Info{}, err
	}

	info := Info{ByteOrder: string(magic[:2])}
	switch string(magic) {
	case leClassic, beClassic:
	case leBig, beBig:
		info.BigTIFF = true
		info.Warning = "BigTIFF no se puede inspeccionar; se acepta sin verificar"
		return info, nil
	default:
		return Info{}, ErrNotTIFF
	}

	cfg, err := tiff.DecodeConfig(io.NewSectionReader(r, 0, 1<<62))
	if err == nil {
		info.Width, info.Height = cfg.Width, cfg.Height
		return info, nil
	}

	var unsupported tiff.UnsupportedError
	var format tiff.FormatError
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return Info{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	case errors.As(err, &unsupported), errors.As(err, &format):
		info.Warning = err.Error()
		return info, nil
	default:
		return Info{}, err
	}
}

// SniffFile is Sniff over the file at path.
func SniffFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	return Sniff(f)
}
