package storage

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// CropStore writes crop thumbnails as {identity}.{ext} into one directory.
type CropStore struct {
	dir     string
	format  string
	quality int
}

// NewCropStore creates the directory if needed. format is jpg, png or webp.
func NewCropStore(dir, format string, quality int) (*CropStore, error) {
	switch format {
	case "jpg", "png", "webp":
	case "":
		format = "jpg"
	default:
		return nil, fmt.Errorf("unsupported crop format %q", format)
	}
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create crop directory: %v", ErrWrite, err)
	}
	return &CropStore{dir: dir, format: format, quality: quality}, nil
}

// Ext returns the file extension crops are stored with.
func (s *CropStore) Ext() string {
	return s.format
}

// Dir returns the crop directory.
func (s *CropStore) Dir() string {
	return s.dir
}

// Filename returns the stored name for an identity.
func (s *CropStore) Filename(identity string) string {
	return identity + "." + s.format
}

// Save encodes img under the identity's filename and returns the path and size written.
func (s *CropStore) Save(identity string, img image.Image) (string, int64, error) {
	path := filepath.Join(s.dir, s.Filename(identity))

	var err error
	switch s.format {
	case "webp":
		err = saveWebP(path, img, s.quality)
	case "png":
		err = imaging.Save(img, path)
	default:
		err = imaging.Save(img, path, imaging.JPEGQuality(s.quality))
	}
	if err != nil {
		return "", 0, fmt.Errorf("%w: save crop %s: %v", ErrWrite, path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: stat crop %s: %v", ErrWrite, path, err)
	}
	return path, info.Size(), nil
}

func saveWebP(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := webp.Encode(f, img, &webp.Options{Lossless: false, Quality: float32(quality)}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
