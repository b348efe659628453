package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docscan-mcp/internal/config"
	"github.com/ironsheep/docscan-mcp/internal/editor"
	"github.com/ironsheep/docscan-mcp/internal/geometry"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/ocr"
)

// executeTool dispatches a tool call to its handler.
//
// Each handler:
//  1. Unmarshals its arguments from JSON
//  2. Applies defaults from the server config
//  3. Converts display coordinates to image pixels
//  4. Calls into editor/imaging/geometry/ocr
//  5. Returns a JSON-serializable result or an error
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(ctx, args)
	case "scan_estimate_homography":
		return s.handleEstimateHomography(args)

	// Editing sessions
	case "scan_session_start":
		return s.handleSessionStart(ctx, args)
	case "scan_session_pointer":
		return s.handleSessionPointer(args)
	case "scan_session_set_corner":
		return s.handleSessionSetCorner(args)
	case "scan_session_preview":
		return s.handleSessionPreview(args)
	case "scan_session_confirm":
		return s.handleSessionConfirm(ctx, args)
	case "scan_session_cancel":
		return s.handleSessionCancel(args)

	case "scan_rectify":
		return s.handleRectify(ctx, args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// imageResult is implemented by results that carry an image for the client.
type imageResult interface {
	inlineImage() *imaging.EncodedImage
}

// rect is a pixel rectangle in JSON form.
type rect struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func toRect(r image.Rectangle) rect {
	return rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

func quadFromPoints(field string, pts []geometry.Point) (geometry.Quad, error) {
	var q geometry.Quad
	if len(pts) != len(q) {
		return q, fmt.Errorf("%s must have exactly 4 points, got %d", field, len(pts))
	}
	copy(q[:], pts)
	return q, nil
}

// displayScale validates a display_scale argument; zero means 1.
func displayScale(v float64) (float64, error) {
	if v == 0 {
		return 1, nil
	}
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("display_scale must be a positive number, got %v", v)
	}
	return v, nil
}

// === Image Information ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

type imageLoadResult struct {
	*imaging.ImageInfo

	// OCR tells the client whether the ocr option of rectification works.
	OCR ocr.Info `json:"ocr"`
}

func (s *Server) handleImageLoad(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	info, err := imaging.LoadImageInfo(ctx, s.cache, a.Path)
	if err != nil {
		return nil, err
	}
	return &imageLoadResult{ImageInfo: info, OCR: ocr.GetInfo()}, nil
}

// === Homography ===

type estimateArgs struct {
	Src    []geometry.Point `json:"src"`
	Dst    []geometry.Point `json:"dst"`
	Solver string           `json:"solver"`
	Seed   *int64           `json:"seed"`
}

type estimateResult struct {
	Homography geometry.Homography `json:"homography"`

	// Inverse maps dst back onto src.
	Inverse geometry.Homography `json:"inverse"`

	Solver string `json:"solver"`
	// MappedSrc is Src pushed through Homography; it should match Dst.
	MappedSrc geometry.Quad `json:"mapped_src"`
}

func (s *Server) handleEstimateHomography(args json.RawMessage) (interface{}, error) {
	var a estimateArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	src, err := quadFromPoints("src", a.Src)
	if err != nil {
		return nil, err
	}
	dst, err := quadFromPoints("dst", a.Dst)
	if err != nil {
		return nil, err
	}

	cfg := *s.cfg
	if a.Solver != "" {
		cfg.Solver = strings.ToLower(a.Solver)
	}
	if a.Seed != nil {
		cfg.Seed = *a.Seed
	}
	if cfg.Solver != config.SolverDirect && cfg.Solver != config.SolverPower {
		return nil, fmt.Errorf("unknown solver: %s", a.Solver)
	}

	h, err := cfg.NewSolver().Estimate(src, dst)
	if err != nil {
		return nil, err
	}
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}
	return &estimateResult{
		Homography: h,
		Inverse:    inv,
		Solver:     cfg.Solver,
		MappedSrc:  h.ApplyQuad(src),
	}, nil
}

// === Editing Sessions ===

type sessionStartArgs struct {
	Path         string           `json:"path"`
	Corners      []geometry.Point `json:"corners"`
	DisplayScale float64          `json:"display_scale"`
}

// sessionResult describes an editing session after a call.
type sessionResult struct {
	SessionID string        `json:"session_id"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Quad      geometry.Quad `json:"quad"`

	// DisplayQuad is Quad in display coordinates, present when a
	// display_scale other than 1 was given.
	DisplayQuad *geometry.Quad `json:"display_quad,omitempty"`

	// Convex is false for a self-intersecting or reflex corner order;
	// such a quad still rectifies but the page comes out folded.
	Convex bool    `json:"convex"`
	Area   float64 `json:"area"`
	Bounds rect    `json:"bounds"`

	// Dragging is the grabbed handle, or null while idle.
	Dragging   *int   `json:"dragging"`
	HandleSize int    `json:"handle_size"`
	Handles    []rect `json:"handles"`
}

func newSessionResult(sess *session, scale float64) *sessionResult {
	st := sess.editor.State()
	w, h := sess.editor.Size()
	res := &sessionResult{
		SessionID:  sess.id,
		Width:      w,
		Height:     h,
		Quad:       st.Quad,
		Convex:     st.Quad.IsConvex(),
		Area:       st.Quad.Area(),
		Bounds:     toRect(st.Quad.Bounds()),
		HandleSize: sess.editor.HandleSize(),
	}
	if scale != 1 {
		dq := st.Quad.Scale(scale)
		res.DisplayQuad = &dq
	}
	if i, ok := st.Dragging(); ok {
		res.Dragging = &i
	}
	for _, r := range sess.editor.Handles() {
		res.Handles = append(res.Handles, toRect(r))
	}
	return res
}

func (s *Server) handleSessionStart(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sessionStartArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scale, err := displayScale(a.DisplayScale)
	if err != nil {
		return nil, err
	}

	var start *geometry.Quad
	if len(a.Corners) > 0 {
		q, err := quadFromPoints("corners", a.Corners)
		if err != nil {
			return nil, err
		}
		q = q.Scale(1 / scale)
		start = &q
	}

	img, err := s.cache.Load(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.create(a.Path, img, s.cfg.EditorOptions())
	if err != nil {
		return nil, err
	}
	if start != nil {
		if err := sess.editor.SetQuad(*start); err != nil {
			return nil, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"session": sess.id,
		"width":   img.Bounds().Dx(),
		"height":  img.Bounds().Dy(),
	}).Debug("Editing session started")
	return newSessionResult(sess, scale), nil
}

type sessionPointerArgs struct {
	SessionID    string  `json:"session_id"`
	Event        string  `json:"event"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	DisplayScale float64 `json:"display_scale"`
}

func (s *Server) handleSessionPointer(args json.RawMessage) (interface{}, error) {
	var a sessionPointerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	kind, err := editor.ParseEventKind(strings.ToLower(a.Event))
	if err != nil {
		return nil, err
	}
	scale, err := displayScale(a.DisplayScale)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.get(a.SessionID)
	if err != nil {
		return nil, err
	}

	sess.editor.Dispatch(editor.Event{Kind: kind, X: a.X / scale, Y: a.Y / scale})
	return newSessionResult(sess, scale), nil
}

type sessionSetCornerArgs struct {
	SessionID    string  `json:"session_id"`
	Index        int     `json:"index"`
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	DisplayScale float64 `json:"display_scale"`
}

func (s *Server) handleSessionSetCorner(args json.RawMessage) (interface{}, error) {
	var a sessionSetCornerArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scale, err := displayScale(a.DisplayScale)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.get(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.editor.SetCorner(a.Index, geometry.Pt(a.X/scale, a.Y/scale)); err != nil {
		return nil, err
	}
	return newSessionResult(sess, scale), nil
}

type sessionPreviewArgs struct {
	SessionID string `json:"session_id"`
	MaxSide   *int   `json:"max_side"`
}

type previewResult struct {
	SessionID string        `json:"session_id"`
	Width     int           `json:"width"`
	Height    int           `json:"height"`
	Quad      geometry.Quad `json:"quad"`

	// Scale is preview pixels per image pixel.
	Scale float64 `json:"scale"`

	Image *imaging.EncodedImage `json:"-"`
}

func (r *previewResult) inlineImage() *imaging.EncodedImage { return r.Image }

func (s *Server) handleSessionPreview(args json.RawMessage) (interface{}, error) {
	var a sessionPreviewArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	maxSide := s.cfg.PreviewMaxSide
	if a.MaxSide != nil {
		maxSide = *a.MaxSide
	}
	sess, err := s.sessions.get(a.SessionID)
	if err != nil {
		return nil, err
	}

	style := s.style
	style.HandleSize = sess.editor.HandleSize()
	quad := sess.editor.Quad()
	preview := imaging.RenderPreview(sess.image, quad, style, maxSide)

	png, err := imaging.ParseFormat("png")
	if err != nil {
		return nil, err
	}
	enc, err := imaging.EncodeBase64(preview, png, 0)
	if err != nil {
		return nil, err
	}
	return &previewResult{
		SessionID: sess.id,
		Width:     enc.Width,
		Height:    enc.Height,
		Quad:      quad,
		Scale:     float64(enc.Width) / float64(sess.image.Bounds().Dx()),
		Image:     enc,
	}, nil
}

// outputArgs selects the size, encoding and destination of a rectified page.
type outputArgs struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	SizeMode    string `json:"size_mode"`
	Format      string `json:"format"`
	OutputPath  string `json:"output_path"`
	OCR         bool   `json:"ocr"`
	OCRLanguage string `json:"ocr_language"`

	// OCRRegion limits OCR to part of the rectified page.
	OCRRegion *rect `json:"ocr_region"`
}

type rectifyResult struct {
	SessionID  string        `json:"session_id,omitempty"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Quad       geometry.Quad `json:"quad"`
	MimeType   string        `json:"mime_type,omitempty"`
	OutputPath string        `json:"output_path,omitempty"`
	OCR        *ocr.Result   `json:"ocr,omitempty"`
	OCRError   string        `json:"ocr_error,omitempty"`

	Image *imaging.EncodedImage `json:"-"`
}

func (r *rectifyResult) inlineImage() *imaging.EncodedImage { return r.Image }

type sessionConfirmArgs struct {
	SessionID string `json:"session_id"`
	outputArgs
}

// handleSessionConfirm rectifies with the session's corners and then closes
// it. If rectification fails the session stays open so the corners can be
// fixed.
func (s *Server) handleSessionConfirm(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a sessionConfirmArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.sessions.get(a.SessionID)
	if err != nil {
		return nil, err
	}

	quad := sess.editor.Quad()
	res, err := s.rectify(ctx, sess.image, quad, a.outputArgs)
	if err != nil {
		return nil, err
	}
	if err := sess.editor.ConfirmQuad(quad); err != nil {
		if errors.Is(err, editor.ErrQuadChanged) {
			return nil, fmt.Errorf("%w; confirm again", err)
		}
		return nil, err
	}
	s.sessions.remove(sess.id, "confirmed")

	if !quad.IsConvex() {
		s.logger.WithFields(logrus.Fields{
			"session": sess.id,
			"quad":    quad,
		}).Warn("Confirmed corners are not convex; the page may come out folded")
	}
	res.SessionID = sess.id
	return res, nil
}

type sessionCancelArgs struct {
	SessionID string `json:"session_id"`
}

type cancelResult struct {
	SessionID string `json:"session_id"`
	Cancelled bool   `json:"cancelled"`
}

func (s *Server) handleSessionCancel(args json.RawMessage) (interface{}, error) {
	var a sessionCancelArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.sessions.get(a.SessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.editor.Cancel(); err != nil {
		return nil, err
	}
	s.sessions.remove(sess.id, "cancelled")
	return &cancelResult{SessionID: sess.id, Cancelled: true}, nil
}

// === One-shot Rectification ===

type rectifyArgs struct {
	Path         string           `json:"path"`
	Corners      []geometry.Point `json:"corners"`
	DisplayScale float64          `json:"display_scale"`
	outputArgs
}

func (s *Server) handleRectify(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a rectifyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	scale, err := displayScale(a.DisplayScale)
	if err != nil {
		return nil, err
	}
	quad, err := quadFromPoints("corners", a.Corners)
	if err != nil {
		return nil, err
	}
	img, err := s.cache.Load(ctx, a.Path)
	if err != nil {
		return nil, err
	}
	// One-shot photos are not kept unless a session is editing them.
	defer func() {
		if !s.sessions.inUse(a.Path) {
			s.cache.Evict(a.Path)
		}
	}()
	return s.rectify(ctx, img, quad.Scale(1/scale), a.outputArgs)
}

// rectify warps quad out of img and encodes or saves the page.
func (s *Server) rectify(ctx context.Context, img *image.NRGBA, quad geometry.Quad, out outputArgs) (*rectifyResult, error) {
	w, h := out.Width, out.Height
	switch {
	case w == 0 && h == 0:
		name := out.SizeMode
		if name == "" {
			name = s.cfg.SizeMode
		}
		mode, err := imaging.ParseSizeMode(name)
		if err != nil {
			return nil, err
		}
		if w, h, err = imaging.OutputSize(mode, img, quad); err != nil {
			return nil, err
		}
	case w <= 0 || h <= 0:
		return nil, fmt.Errorf("%w: width and height must both be positive, got %dx%d", imaging.ErrInvalidSize, w, h)
	}

	page, err := s.cfg.Warper().WarpContext(ctx, img, quad, w, h)
	if err != nil {
		return nil, err
	}
	res := &rectifyResult{Width: w, Height: h, Quad: quad}

	if out.OutputPath != "" {
		if err := imaging.Save(out.OutputPath, page, s.cfg.JPEGQuality); err != nil {
			return nil, err
		}
		res.OutputPath = out.OutputPath
	} else {
		name := out.Format
		if name == "" {
			name = s.cfg.OutputFormat
		}
		f, err := imaging.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		enc, err := imaging.EncodeBase64(page, f, s.cfg.JPEGQuality)
		if err != nil {
			return nil, err
		}
		res.Image = enc
		res.MimeType = enc.MimeType
	}

	if out.OCR {
		lang := out.OCRLanguage
		if lang == "" {
			lang = s.cfg.OCRLanguage
		}
		var text *ocr.Result
		var err error
		if out.OCRRegion != nil {
			r := out.OCRRegion
			text, err = ocr.RecognizeRegion(page, image.Rect(r.X1, r.Y1, r.X2, r.Y2), lang)
		} else {
			text, err = ocr.Recognize(page, lang)
		}
		if err != nil {
			s.logger.WithError(err).Warn("OCR of rectified page failed")
			res.OCRError = err.Error()
		} else {
			res.OCR = text
		}
	}

	s.logger.WithFields(logrus.Fields{"width": w, "height": h}).Debug("Page rectified")
	return res, nil
}
