// Package geometry provides the planar geometry used by the scanner: points,
// corner quadrilaterals and the projective transforms (homographies) that map
// one quadrilateral onto another.
//
// # Coordinate System
//
// Coordinates are floating-point pixel positions in image space with (0,0) at
// the top-left corner, X increasing rightward and Y increasing downward. A
// Quad is ordered top-left, top-right, bottom-right, bottom-left; that order
// defines the correspondence with a destination rectangle.
//
// # Homographies
//
// A Homography is a 3x3 matrix stored row-major as 9 scalars and normalized so
// that the bottom-right entry is 1. Estimate computes one from four point
// correspondences using the Direct Linear Transform, solving the 8x8 system
// that results from fixing h8 = 1. PowerIteration offers the older
// eigenvector approximation with an injectable random source.
//
// # Error Handling
//
// Estimation fails with an error matching ErrDegenerateCorrespondence when the
// points are non-finite, coincident or collinear, or when the solve does not
// produce a finite, normalizable matrix. Apply never fails: a point mapped to
// infinity comes back as (NaN, NaN), which callers treat as "outside".
package geometry
