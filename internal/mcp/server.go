// Package mcp exposes a SymbolIndex as Model Context Protocol tools over
// stdio.
package mcp

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/symindex/internal/config"
	"github.com/standardbeagle/symindex/internal/index"
	"github.com/standardbeagle/symindex/internal/version"
)

// Server serves fuzzy_find, lookup, refs and memory_usage over one index.
type Server struct {
	index            index.SymbolIndex
	cfg              *config.Config
	server           *mcp.Server
	diagnosticLogger *DiagnosticLogger
	ownsLogger       bool
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithDiagnosticLogger replaces the default file logger.
func WithDiagnosticLogger(dl *DiagnosticLogger) ServerOption {
	return func(s *Server) {
		s.diagnosticLogger = dl
	}
}

// NewServer creates an MCP server answering queries from idx. A nil cfg
// means config.Default().
func NewServer(idx index.SymbolIndex, cfg *config.Config, opts ...ServerOption) (*Server, error) {
	if idx == nil {
		return nil, fmt.Errorf("mcp server requires an index")
	}
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Server{
		index: idx,
		cfg:   cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.diagnosticLogger == nil {
		s.diagnosticLogger = NewDiagnosticLogger(true)
		s.ownsLogger = true
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "symindex",
		Version: version.Version,
	}, nil)
	s.registerTools()

	s.diagnosticLogger.Printf("%s build %s initialized (max_results=%d)", version.FullInfo(), version.BuildID(), cfg.Index.MaxResults)
	return s, nil
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "fuzzy_find",
		Description: "Fuzzy-match symbol names. A qualified query such as 'ns::vec' restricts the scope to 'ns::'. Results are ranked best first.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"query": {
					Type:        "string",
					Description: "Name fragment, optionally qualified with '::'",
				},
				"scopes": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Enclosing scopes to accept, each ending in '::'; \"\" is the global scope",
				},
				"any_scope": {
					Type:        "boolean",
					Description: "Ignore scopes and match in every scope",
				},
				"completion": {
					Type:        "boolean",
					Description: "Only return symbols usable in code completion",
				},
				"max": {
					Type:        "integer",
					Description: "Maximum results (default from config)",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleFuzzyFind)

	s.server.AddTool(&mcp.Tool{
		Name:        "lookup",
		Description: "Fetch symbols by id. Unknown ids are skipped.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"ids": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Symbol ids (16 hex digits)",
				},
			},
			Required: []string{"ids"},
		},
	}, s.handleLookup)

	s.server.AddTool(&mcp.Tool{
		Name:        "refs",
		Description: "List declarations, definitions and references of symbols by id.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"ids": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Symbol ids (16 hex digits)",
				},
				"kinds": {
					Type:        "array",
					Items:       &jsonschema.Schema{Type: "string"},
					Description: "Occurrence kinds: declaration, definition, reference, all (default all)",
				},
			},
			Required: []string{"ids"},
		},
	}, s.handleRefs)

	s.server.AddTool(&mcp.Tool{
		Name:        "memory_usage",
		Description: "Report the estimated memory footprint and shape of the installed index generation.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{},
		},
	}, s.handleMemoryUsage)
}

// recoverFromPanic turns a panicking handler into an error result
func (s *Server) recoverFromPanic(operation string, handler func() (*mcp.CallToolResult, error)) (result *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.diagnosticLogger.Errorf("PANIC RECOVERED in %s: %v\n%s", operation, r, debug.Stack())
			result, err = createErrorResponse(operation, fmt.Errorf("internal error: %v", r))
		}
	}()

	result, err = handler()
	if err != nil {
		s.diagnosticLogger.Errorf("%s: %v", operation, err)
		return createErrorResponse(operation, err)
	}
	return result, nil
}

// Start serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.diagnosticLogger.Printf("Starting MCP server with stdio transport")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close releases the diagnostic log file if the server opened it.
func (s *Server) Close() error {
	if s.ownsLogger {
		return s.diagnosticLogger.Close()
	}
	return nil
}
