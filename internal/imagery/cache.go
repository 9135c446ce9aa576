package imagery

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // promo backgrounds may be JPEG
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	_ "golang.org/x/image/webp" // WebP decode support
	"golang.org/x/sync/singleflight"
)

// ErrAssetUnavailable covers missing, unfetchable or undecodable images.
var ErrAssetUnavailable = errors.New("asset unavailable")

// Fetcher downloads a promo image by its remote path.
type Fetcher interface {
	FetchPromoImage(ctx context.Context, path string) ([]byte, error)
}

// Cache stores promo backgrounds on disk. A miss fetches the image exactly
// once, even under concurrent requests, and publishes it with an atomic rename.
type Cache struct {
	dir     string
	fetcher Fetcher
	group   singleflight.Group
}

// fetchTimeout bounds a shared download, which outlives any single caller.
const fetchTimeout = 30 * time.Second

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewCache creates dir if needed.
func NewCache(dir string, fetcher Fetcher) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, fetcher: fetcher}, nil
}

// Load returns the decoded background for path.
func (c *Cache) Load(ctx context.Context, path string) (image.Image, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty image path", ErrAssetUnavailable)
	}
	file := c.file(path)
	raw, err := os.ReadFile(file)
	switch {
	case err == nil:
		return decode(raw, path)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: read %s: %v", ErrAssetUnavailable, file, err)
	}

	v, err, _ := c.group.Do(file, func() (any, error) {
		if raw, err := os.ReadFile(file); err == nil {
			return raw, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		raw, err := c.fetcher.FetchPromoImage(fctx, path)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch %s: %v", ErrAssetUnavailable, path, err)
		}
		if _, err := decode(raw, path); err != nil {
			return nil, err
		}
		if err := writeAtomic(c.dir, file, raw); err != nil {
			return nil, fmt.Errorf("%w: persist %s: %v", ErrAssetUnavailable, path, err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return decode(v.([]byte), path)
}

func (c *Cache) file(path string) string {
	sum := sha256.Sum256([]byte(path))
	base := unsafeName.ReplaceAllString(filepath.Base(path), "_")
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8])+"_"+base)
}

func decode(raw []byte, path string) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrAssetUnavailable, path, err)
	}
	return img, nil
}

func writeAtomic(dir, file string, raw []byte) error {
	tmp, err := os.CreateTemp(dir, ".fetch-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), file)
}
