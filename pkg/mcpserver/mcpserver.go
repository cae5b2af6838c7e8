// Package mcpserver exposes the download/validate pipeline as an MCP
// tool surface, so an LLM agent can request an offline map package the
// same way a human operator would from the CLI.
package mcpserver

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	mcpsrv "github.com/mark3labs/mcp-go/server"

	"github.com/styledmap/smp/pkg/download"
	"github.com/styledmap/smp/pkg/scheduler"
	"github.com/styledmap/smp/pkg/smpgeo"
	"github.com/styledmap/smp/pkg/validator"
	"github.com/styledmap/smp/pkg/version"
)

// ServerName identifies this process to MCP clients; the reported
// version is version.String().
const ServerName = "smp-server"

// Server wraps an mcp-go server exposing download_smp and validate_smp.
type Server struct {
	srv    *mcpsrv.MCPServer
	logger *slog.Logger

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
	running bool
}

// New builds a Server with both tools registered.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("initializing SMP MCP server", "name", ServerName, "version", version.String())

	srv := mcpsrv.NewMCPServer(
		ServerName,
		version.String(),
		mcpsrv.WithToolCapabilities(false),
		mcpsrv.WithRecovery(),
	)

	s := &Server{
		srv:    srv,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.srv.AddTool(downloadSMPTool(), s.handleDownloadSMP)
	s.srv.AddTool(validateSMPTool(), s.handleValidateSMP)
}

func downloadSMPTool() mcp.Tool {
	return mcp.NewTool("download_smp",
		mcp.WithDescription("Download a MapLibre style and its tiles, fonts, and sprites into a single offline SMP archive for a bounding box"),
		mcp.WithString("style_url",
			mcp.Required(),
			mcp.Description("Style URL, either a plain https:// URL or a mapbox://styles/{user}/{id} reference"),
		),
		mcp.WithNumber("west", mcp.Required(), mcp.Description("Western bounding box longitude")),
		mcp.WithNumber("south", mcp.Required(), mcp.Description("Southern bounding box latitude")),
		mcp.WithNumber("east", mcp.Required(), mcp.Description("Eastern bounding box longitude")),
		mcp.WithNumber("north", mcp.Required(), mcp.Description("Northern bounding box latitude")),
		mcp.WithNumber("max_zoom",
			mcp.Description("Maximum tile zoom to fetch"),
			mcp.DefaultNumber(14),
		),
		mcp.WithString("access_token",
			mcp.Description("mapbox:// access token (pk.*), required when style_url or any referenced source uses mapbox://"),
			mcp.DefaultString(""),
		),
		mcp.WithString("out_path",
			mcp.Required(),
			mcp.Description("Filesystem path to write the archive to"),
		),
	)
}

func (s *Server) handleDownloadSMP(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	styleURL := mcp.ParseString(req, "style_url", "")
	outPath := mcp.ParseString(req, "out_path", "")
	accessToken := mcp.ParseString(req, "access_token", "")
	maxZoom := int(mcp.ParseFloat64(req, "max_zoom", 14))

	bbox := smpgeo.BBox{
		West:  mcp.ParseFloat64(req, "west", 0),
		South: mcp.ParseFloat64(req, "south", 0),
		East:  mcp.ParseFloat64(req, "east", 0),
		North: mcp.ParseFloat64(req, "north", 0),
	}

	if styleURL == "" || outPath == "" {
		return mcp.NewToolResultError("style_url and out_path are required"), nil
	}

	out, err := os.Create(outPath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("creating %s: %v", outPath, err)), nil
	}
	defer out.Close()

	d := download.New(s.logger)
	schedCfg := scheduler.DefaultConfig
	schedCfg.Logger = s.logger

	res, err := d.Run(ctx, download.Request{
		StyleURL:    styleURL,
		BBox:        bbox,
		MaxZoom:     maxZoom,
		AccessToken: accessToken,
		Scheduler:   schedCfg,
	}, out)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	msg := fmt.Sprintf("wrote %s: %d sources, %d planned tiles, %d font stacks, %d resource warnings",
		outPath, res.SourceCount, res.PlanSize, len(res.FontStacks), len(res.ResourceErrs))
	return mcp.NewToolResultText(msg), nil
}

func validateSMPTool() mcp.Tool {
	return mcp.NewTool("validate_smp",
		mcp.WithDescription("Run the layered integrity audit against an SMP archive and report errors and warnings"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Filesystem path to the SMP archive")),
	)
}

func (s *Server) handleValidateSMP(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := mcp.ParseString(req, "path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	report := validator.ValidatePath(path)
	if report.Valid {
		msg := fmt.Sprintf("%s is valid", path)
		if len(report.Warnings) > 0 {
			msg += fmt.Sprintf(" (%d warning(s))", len(report.Warnings))
		}
		return mcp.NewToolResultText(msg), nil
	}

	msg := fmt.Sprintf("%s failed validation:\n", path)
	for _, e := range report.Errors {
		msg += "  error: " + e + "\n"
	}
	for _, w := range report.Warnings {
		msg += "  warning: " + w + "\n"
	}
	return mcp.NewToolResultError(msg), nil
}

// Run serves the MCP server over stdio until stdin closes or the
// context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	go func() {
		defer close(s.doneCh)
		err := mcpsrv.NewStdioServer(s.srv).Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && err != io.EOF && err != context.Canceled {
			s.logger.Error("MCP server error", "error", err)
		}
		s.Shutdown()
	}()

	<-s.stopCh
	<-s.doneCh
	return nil
}

// Shutdown signals the server to stop. Safe to call multiple times.
func (s *Server) Shutdown() {
	s.once.Do(func() {
		close(s.stopCh)
	})
}
