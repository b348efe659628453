package server

import "github.com/mark3labs/mcp-go/mcp"

// pointItems is the JSON schema of one corner in a corners array.
var pointItems = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"x": map[string]any{"type": "number"},
		"y": map[string]any{"type": "number"},
	},
	"required": []string{"x", "y"},
}

const cornersDescription = "Four corners {x, y} in order top-left, top-right, bottom-right, bottom-left"

func displayScaleOption() mcp.ToolOption {
	return mcp.WithNumber("display_scale",
		mcp.Description("Display pixels per image pixel. Coordinates are divided by this before use (default 1)"),
	)
}

// outputOptions are shared by the tools that produce a rectified page.
func outputOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("width",
			mcp.Description("Output width in pixels. Give with height, or omit both to use size_mode"),
		),
		mcp.WithNumber("height",
			mcp.Description("Output height in pixels"),
		),
		mcp.WithString("size_mode",
			mcp.Description("How to choose the output size when width/height are omitted: natural reuses the photo size, auto uses the corner edge lengths"),
			mcp.Enum("natural", "auto"),
		),
		mcp.WithString("format",
			mcp.Description("Output format: png, jpg, gif, tiff or bmp (default from config)"),
		),
		mcp.WithString("output_path",
			mcp.Description("Write the page to this file instead of returning it inline. The extension selects the format"),
		),
		mcp.WithBoolean("ocr",
			mcp.Description("Run OCR on the rectified page and include the text"),
		),
		mcp.WithString("ocr_language",
			mcp.Description("Tesseract language code for OCR (default from config)"),
		),
		mcp.WithObject("ocr_region",
			mcp.Description("Limit OCR to this rectangle of the rectified page, in output pixels"),
			mcp.Properties(map[string]any{
				"x1": map[string]any{"type": "integer"},
				"y1": map[string]any{"type": "integer"},
				"x2": map[string]any{"type": "integer"},
				"y2": map[string]any{"type": "integer"},
			}),
		),
	}
}

// ToolDefinitions returns every tool the server registers.
func ToolDefinitions() []mcp.Tool {
	return []mcp.Tool{
		mcp.NewTool("image_load",
			mcp.WithDescription("Load a photo and return its dimensions, format and color depth. The decoded image is cached for later calls."),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Absolute path to the image file"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithOpenWorldHintAnnotation(false),
		),

		mcp.NewTool("scan_estimate_homography",
			mcp.WithDescription("Compute the 3x3 projective transform mapping four source points onto four destination points. Returns the 9 entries row-major with the last normalized to 1."),
			mcp.WithArray("src",
				mcp.Required(),
				mcp.Description("Four source points {x, y}"),
				mcp.Items(pointItems),
			),
			mcp.WithArray("dst",
				mcp.Required(),
				mcp.Description("Four destination points {x, y}"),
				mcp.Items(pointItems),
			),
			mcp.WithString("solver",
				mcp.Description("direct (default) or power"),
				mcp.Enum("direct", "power"),
			),
			mcp.WithNumber("seed",
				mcp.Description("Seed for the power solver (default from config)"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithOpenWorldHintAnnotation(false),
		),

		mcp.NewTool("scan_session_start",
			mcp.WithDescription("Start a corner editing session over a photo. Corners start inset from the image edges unless given. Returns the session id, the corners and the handle squares."),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Absolute path to the photo"),
			),
			mcp.WithArray("corners",
				mcp.Description(cornersDescription+". Optional starting position"),
				mcp.Items(pointItems),
			),
			displayScaleOption(),
			mcp.WithOpenWorldHintAnnotation(false),
		),

		mcp.NewTool("scan_session_pointer",
			mcp.WithDescription("Send a pointer event to an editing session. Pressing inside a corner handle grabs it, moving drags it, releasing or leaving drops it."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session UUID from scan_session_start"),
			),
			mcp.WithString("event",
				mcp.Required(),
				mcp.Description("Pointer event"),
				mcp.Enum("down", "move", "up", "leave"),
			),
			mcp.WithNumber("x",
				mcp.Description("Pointer X coordinate"),
			),
			mcp.WithNumber("y",
				mcp.Description("Pointer Y coordinate"),
			),
			displayScaleOption(),
			mcp.WithOpenWorldHintAnnotation(false),
		),

		mcp.NewTool("scan_session_set_corner",
			mcp.WithDescription("Move one corner of an editing session straight to a position, without a drag. Ends any drag in progress."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session UUID from scan_session_start"),
			),
			mcp.WithNumber("index",
				mcp.Required(),
				mcp.Description("Corner index: 0 top-left, 1 top-right, 2 bottom-right, 3 bottom-left"),
			),
			mcp.WithNumber("x",
				mcp.Required(),
				mcp.Description("Corner X coordinate"),
			),
			mcp.WithNumber("y",
				mcp.Required(),
				mcp.Description("Corner Y coordinate"),
			),
			displayScaleOption(),
			mcp.WithIdempotentHintAnnotation(true),
			mcp.WithOpenWorldHintAnnotation(false),
		),

		mcp.NewTool("scan_session_preview",
			mcp.WithDescription("Render the photo with the current corner polygon and handles drawn on top, as a PNG."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session UUID from scan_session_start"),
			),
			mcp.WithNumber("max_side",
				mcp.Description("Shrink the preview to fit this many pixels per side (default from config, 0 for full size)"),
			),
			mcp.WithReadOnlyHintAnnotation(true),
			mcp.WithOpenWorldHintAnnotation(false),
		),

		mcp.NewTool("scan_session_confirm",
			append([]mcp.ToolOption{
				mcp.WithDescription("Confirm the corners of an editing session and return the rectified page. The session is closed."),
				mcp.WithString("session_id",
					mcp.Required(),
					mcp.Description("Session UUID from scan_session_start"),
				),
				mcp.WithOpenWorldHintAnnotation(false),
			}, outputOptions()...)...,
		),

		mcp.NewTool("scan_session_cancel",
			mcp.WithDescription("Discard an editing session without rectifying."),
			mcp.WithString("session_id",
				mcp.Required(),
				mcp.Description("Session UUID from scan_session_start"),
			),
			mcp.WithDestructiveHintAnnotation(true),
			mcp.WithOpenWorldHintAnnotation(false),
		),

		mcp.NewTool("scan_rectify",
			append([]mcp.ToolOption{
				mcp.WithDescription("Rectify the region of a photo bounded by four corners into a flat page in one call."),
				mcp.WithString("path",
					mcp.Required(),
					mcp.Description("Absolute path to the photo"),
				),
				mcp.WithArray("corners",
					mcp.Required(),
					mcp.Description(cornersDescription),
					mcp.Items(pointItems),
				),
				displayScaleOption(),
				mcp.WithOpenWorldHintAnnotation(false),
			}, outputOptions()...)...,
		),
	}
}
