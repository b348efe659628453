package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ErrImageDecode is matched (via errors.Is) by every decode failure.
var ErrImageDecode = errors.New("image decode failed")

// DecodeError reports bytes that could not be decoded into a raster.
type DecodeError struct {
	// Source names the input (a file path), empty for in-memory bytes.
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s: %v", ErrImageDecode, e.Source, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrImageDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrImageDecode, e.Err}
}

// Decode reads an encoded photo (PNG, JPEG, GIF, TIFF, BMP or WebP) and
// returns it as a fresh NRGBA raster anchored at (0,0). EXIF orientation is
// applied so phone photos come out upright.
//
// Decoding runs on its own goroutine; if ctx ends first Decode returns
// ctx.Err() and the result is discarded.
func Decode(ctx context.Context, r io.Reader) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		img *image.NRGBA
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := imaging.Decode(r, imaging.AutoOrientation(true))
		if err != nil {
			ch <- result{err: &DecodeError{Err: err}}
			return
		}
		if img.Bounds().Empty() {
			ch <- result{err: &DecodeError{Err: errors.New("image has no pixels")}}
			return
		}
		ch <- result{img: ToRaster(img)}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.img, res.err
	}
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(ctx context.Context, data []byte) (*image.NRGBA, error) {
	return Decode(ctx, bytes.NewReader(data))
}

// ToRaster copies img into a new NRGBA raster with bounds (0,0)-(w,h).
func ToRaster(img image.Image) *image.NRGBA {
	return imaging.Clone(img)
}

// ImageCache provides thread-safe caching of decoded rasters keyed by file
// path, so an editing session and the following rectification share one
// decode.
//
// Cached rasters are never mutated; every consumer (the warper, the overlay
// renderer) allocates its own output.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]*image.NRGBA
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]*image.NRGBA),
	}
}

// Load retrieves a raster from the cache or decodes it from disk.
//
// The raster is cached using the exact path string provided. Different paths
// to the same file (relative vs absolute) result in separate entries.
//
// Errors:
//   - the file cannot be read (wrapped os error)
//   - the contents are not a supported image (matches ErrImageDecode)
//   - ctx ended before decoding finished
func (c *ImageCache) Load(ctx context.Context, path string) (*image.NRGBA, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	// Read up front so an abandoned decode never touches a closed file.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	img, err := DecodeBytes(ctx, data)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Source = path
		}
		return nil, err
	}

	c.mu.Lock()
	c.images[path] = img
	c.mu.Unlock()

	return img, nil
}

// Clear removes all rasters from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]*image.NRGBA)
	c.mu.Unlock()
}

// Evict removes a specific raster from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached rasters.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo contains metadata about a photo file.
type ImageInfo struct {
	// Width is the upright width in pixels (after EXIF orientation).
	Width int `json:"width"`

	// Height is the upright height in pixels (after EXIF orientation).
	Height int `json:"height"`

	// Format is the format detected from the file header: "png", "jpeg",
	// "gif", "tiff", "bmp" or "webp".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha reports whether any pixel is not fully opaque.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads a photo into the cache and returns its metadata.
//
// The format and color depth come from the encoded header, the dimensions
// from the decoded (upright) raster.
func LoadImageInfo(ctx context.Context, cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}

	colorDepth := "8-bit"
	switch cfg.ColorModel {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		colorDepth = "16-bit"
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        format,
		ColorDepth:    colorDepth,
		HasAlpha:      !img.Opaque(),
		FileSizeBytes: stat.Size(),
	}, nil
}
