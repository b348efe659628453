// Package imaging provides the raster side of the scanner: decoding photos,
// rectifying a corner quadrilateral into a flat page, drawing the corner
// editor overlay and encoding results.
//
// All rasters are *image.NRGBA anchored at (0,0) with 8 bits per channel.
// Every operation allocates its own output; inputs are never modified.
//
// # Coordinate System
//
// Pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Corner quadrilaterals use
// floating-point coordinates in the same space and may lie partly or wholly
// outside the image.
//
// # Rectification
//
// Warp estimates the homography from the output rectangle back into the
// source and samples every output pixel with nearest-neighbor lookup. Output
// pixels whose source position falls outside the photo are left transparent.
// Warper.Parallel splits rows across goroutines with identical results, and
// WarpContext runs the pass off the caller's goroutine.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. The other functions are
// stateless and can be called concurrently.
//
// # Error Handling
//
//   - Decode failures match ErrImageDecode and carry a *DecodeError
//   - Non-positive output sizes match ErrInvalidSize
//   - Degenerate corners match geometry.ErrDegenerateCorrespondence
package imaging
