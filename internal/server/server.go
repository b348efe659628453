package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/docscan-mcp/internal/config"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
)

// Name and Version identify the server to MCP clients.
const (
	Name    = "docscan-mcp"
	Version = "0.1.0"
)

// Server exposes the document scanner as MCP tools.
type Server struct {
	cfg      *config.Config
	logger   *logrus.Logger
	cache    *imaging.ImageCache
	sessions *sessionStore
	style    imaging.OverlayStyle
	mcp      *mcpserver.MCPServer
}

// New creates a server and registers every tool. A nil cfg uses
// config.Default; a nil logger uses logrus.StandardLogger.
func New(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	style, err := cfg.OverlayStyle()
	if err != nil {
		return nil, fmt.Errorf("invalid overlay style: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		cache:    imaging.NewImageCache(),
		sessions: newSessionStore(cfg.MaxSessions, cfg.SessionTimeout),
		style:    style,
		mcp: mcpserver.NewMCPServer(Name, Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
	}
	s.sessions.released = s.sessionReleased
	for _, tool := range ToolDefinitions() {
		s.mcp.AddTool(tool, s.toolHandler(tool.Name))
	}
	logger.WithField("tool_count", len(ToolDefinitions())).Debug("MCP server created")
	return s, nil
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// Close cancels every open session and empties the image cache.
func (s *Server) Close() {
	n := s.sessions.closeAll()
	s.cache.Clear()
	s.logger.WithField("sessions", n).Debug("Server closed")
}

// sessionReleased drops the cached photo of a finished session unless
// another open session still uses it.
func (s *Server) sessionReleased(sess *session, reason string) {
	if !s.sessions.inUse(sess.path) {
		s.cache.Evict(sess.path)
	}
	s.logger.WithFields(logrus.Fields{
		"session": sess.id,
		"reason":  reason,
		"age":     time.Since(sess.created).Round(time.Millisecond),
	}).Debug("Editing session closed")
}

// Run serves MCP over stdin/stdout until stdin closes or the process is
// signalled.
func (s *Server) Run() error {
	errLog := log.New(s.logger.WriterLevel(logrus.ErrorLevel), "", 0)
	return mcpserver.ServeStdio(s.mcp, mcpserver.WithErrorLogger(errLog))
}

// toolHandler adapts executeTool to an mcp-go handler. Tool failures are
// reported as tool error results so the client can show them to the user.
func (s *Server) toolHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		entry := s.logger.WithField("tool", name)

		args, err := json.Marshal(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := s.executeTool(ctx, name, args)
		entry = entry.WithField("elapsed", time.Since(start))
		if err != nil {
			entry.WithError(err).Warn("Tool execution failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		entry.Debug("Tool executed")

		if ir, ok := result.(imageResult); ok {
			if img := ir.inlineImage(); img != nil {
				return mcp.NewToolResultImage(mustMarshalJSON(result), img.ImageBase64, img.MimeType), nil
			}
		}
		return mcp.NewToolResultText(mustMarshalJSON(result)), nil
	}
}
