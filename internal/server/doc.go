// Package server implements the MCP (Model Context Protocol) server for the
// document scanner.
//
// The protocol itself (JSON-RPC 2.0 over stdio, initialize, tools/list,
// tools/call, ping) is handled by mcp-go. This package registers the tools
// and maps their arguments onto the editor, imaging, geometry and ocr
// packages.
//
// # Available Tools
//
// Image Information:
//   - image_load: Load a photo and report its metadata
//
// Geometry:
//   - scan_estimate_homography: Solve the 4-point projective transform
//
// Corner Editing Sessions:
//   - scan_session_start: Open a session with the initial corners
//   - scan_session_pointer: Send a down/move/up/leave pointer event
//   - scan_session_set_corner: Move one corner straight to a position
//   - scan_session_preview: Render the photo with the corner overlay
//   - scan_session_confirm: Rectify with the current corners and close
//   - scan_session_cancel: Close without rectifying
//
// One-shot:
//   - scan_rectify: Rectify a photo from four given corners
//
// # Coordinates
//
// Corners and pointer positions are image pixels unless display_scale is
// given, in which case they are display pixels and are divided by the scale.
//
// # Image Caching
//
// Decoded photos are cached by path while a session is editing them, so a
// session and its later calls decode the file once. The entry is evicted when
// the last session on that path closes, and after a one-shot scan_rectify.
//
// # Session Lifetime
//
// A session ends on confirm or cancel. Sessions idle for longer than the
// session_timeout setting are dropped, and Close drops all of them.
//
// # Error Handling
//
// Tool failures are returned as tool results with isError set, not as
// JSON-RPC errors, so clients show them to the user. Degenerate corners
// leave an editing session open so the user can move them and retry.
//
// # Usage
//
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
