package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createInMemoryImage creates a solid color NRGBA image.
func createInMemoryImage(width, height int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// createGradientImage creates an opaque image where every pixel is distinct
// enough to catch off-by-one sampling.
func createGradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x * 7), uint8(y * 13), uint8(x ^ y), 255})
		}
	}
	return img
}

// createTestImage writes a solid color PNG and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test-image.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, createInMemoryImage(width, height, c)))
	return path
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeBytes(t *testing.T) {
	src := createGradientImage(40, 30)
	img, err := DecodeBytes(context.Background(), encodePNG(t, src))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())
	assert.Equal(t, src.Pix, img.Pix)
}

func TestDecodeBytes_JPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, createInMemoryImage(16, 8, color.White), nil))

	img, err := DecodeBytes(context.Background(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())
	assert.Equal(t, 8, img.Bounds().Dy())
}

func TestDecodeBytes_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("not an image")},
		{"truncated png", encodePNG(t, createGradientImage(10, 10))[:40]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := DecodeBytes(context.Background(), tt.data)
			require.Error(t, err)
			assert.Nil(t, img)
			assert.True(t, errors.Is(err, ErrImageDecode))

			var de *DecodeError
			assert.True(t, errors.As(err, &de))
		})
	}
}

func TestDecode_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns keeps the decode goroutine busy.
	r, w := io.Pipe()
	defer w.Close()

	_, err := Decode(ctx, r)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToRaster_CopiesAndRebases(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 14, 12))
	src.Set(10, 10, color.RGBA{1, 2, 3, 255})

	out := ToRaster(src)
	assert.Equal(t, image.Rect(0, 0, 4, 2), out.Bounds())
	assert.Equal(t, color.NRGBA{1, 2, 3, 255}, out.NRGBAAt(0, 0))

	out.SetNRGBA(0, 0, color.NRGBA{9, 9, 9, 255})
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, src.RGBAAt(10, 10))
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	require.NotNil(t, cache)
	assert.NotNil(t, cache.images)
	assert.Equal(t, 0, cache.Len())
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 100, 100, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Load(context.Background(), imgPath)
	require.NoError(t, err)
	assert.Equal(t, 100, img1.Bounds().Dx())
	assert.Equal(t, 100, img1.Bounds().Dy())

	img2, err := cache.Load(context.Background(), imgPath)
	require.NoError(t, err)
	assert.Same(t, img1, img2, "second Load did not return cached image")
}

func TestImageCache_Load_NonExistent(t *testing.T) {
	cache := NewImageCache()
	_, err := cache.Load(context.Background(), "/nonexistent/path/to/image.png")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrImageDecode))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestImageCache_Load_InvalidImage(t *testing.T) {
	cache := NewImageCache()
	path := filepath.Join(t.TempDir(), "invalid.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := cache.Load(context.Background(), path)
	require.Error(t, err)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, path, de.Source)
	assert.Contains(t, err.Error(), path)
	assert.Equal(t, 0, cache.Len())
}

func TestImageCache_Load_Canceled(t *testing.T) {
	cache := NewImageCache()
	path := createTestImage(t, 20, 20, color.White)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Load(ctx, path)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cache.Len())

	// The file is still readable and decodes normally afterwards.
	img, err := cache.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 1, cache.Len())
}

func TestImageCache_ClearAndEvict(t *testing.T) {
	cache := NewImageCache()
	a := createTestImage(t, 10, 10, color.White)
	b := createTestImage(t, 10, 10, color.Black)

	_, err := cache.Load(context.Background(), a)
	require.NoError(t, err)
	_, err = cache.Load(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())

	cache.Evict(a)
	assert.Equal(t, 1, cache.Len())
	cache.Evict("/nonexistent/path")
	assert.Equal(t, 1, cache.Len())

	cache.Clear()
	assert.Equal(t, 0, cache.Len())
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{128, 128, 128, 255})

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(context.Background(), imgPath); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestLoadImageInfo(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 200, 150, color.RGBA{255, 128, 64, 255})

	info, err := LoadImageInfo(context.Background(), cache, imgPath)
	require.NoError(t, err)
	assert.Equal(t, 200, info.Width)
	assert.Equal(t, 150, info.Height)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, "8-bit", info.ColorDepth)
	assert.False(t, info.HasAlpha)
	assert.Positive(t, info.FileSizeBytes)
}

func TestLoadImageInfo_AlphaAndDepth(t *testing.T) {
	cache := NewImageCache()
	path := filepath.Join(t.TempDir(), "deep.png")

	img := image.NewNRGBA64(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA64{R: 0xffff, A: 0x8000})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	info, err := LoadImageInfo(context.Background(), cache, path)
	require.NoError(t, err)
	assert.Equal(t, "16-bit", info.ColorDepth)
	assert.True(t, info.HasAlpha)
}

func TestLoadImageInfo_NonExistent(t *testing.T) {
	_, err := LoadImageInfo(context.Background(), NewImageCache(), "/nonexistent/image.png")
	assert.Error(t, err)
}
