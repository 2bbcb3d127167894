package compare

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/ssrdiff/kit"
)

// RegisterMCP registers the ssrdiff tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerCompareTool(srv)
	s.registerNormalizeTool(srv)
	s.registerDiffTool(srv)
	s.registerHistoryTool(srv)
}

// --- compare ---

func (s *Service) registerCompareTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name: "ssrdiff_compare",
		Description: "Fetch a page over HTTP and from a live browser, then report which elements " +
			"the rendered document adds or lacks compared to the server markup.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":    map[string]any{"type": "string", "description": "Page URL"},
			"target": map[string]any{"type": "string", "description": "CDP target ID of an open tab to read instead of opening the URL"},
			"options": map[string]any{
				"type":        "object",
				"description": "Display toggles: raw, rewrite, highlight, sanitize, minify",
			},
		}, []string{"url"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Compare(ctx, *req.(*CompareRequest))
	}
	kit.RegisterMCPTool[CompareRequest](srv, tool, s.logged("ssrdiff_compare", endpoint))
}

// --- normalize ---

func (s *Service) registerNormalizeTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ssrdiff_normalize",
		Description: "Rewrite relative src and href references in HTML markup to absolute URLs.",
		InputSchema: kit.InputSchema(map[string]any{
			"markup":   map[string]any{"type": "string", "description": "HTML markup"},
			"base":     map[string]any{"type": "string", "description": "Absolute base URL"},
			"page_url": map[string]any{"type": "string", "description": "Page URL to derive the base from when base is empty"},
		}, []string{"markup"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Normalize(ctx, *req.(*NormalizeRequest))
	}
	kit.RegisterMCPTool[NormalizeRequest](srv, tool, s.logged("ssrdiff_normalize", endpoint))
}

// --- diff ---

func (s *Service) registerDiffTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ssrdiff_diff",
		Description: "Structurally compare rendered and reference HTML and return both annotated with diff-added / diff-missing classes.",
		InputSchema: kit.InputSchema(map[string]any{
			"rendered":  map[string]any{"type": "string", "description": "Rendered (live) markup"},
			"reference": map[string]any{"type": "string", "description": "Reference (server) markup"},
			"style":     map[string]any{"type": "boolean", "description": "Inject the marker style into each head"},
		}, []string{"rendered", "reference"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		return s.Diff(ctx, *req.(*DiffRequest))
	}
	kit.RegisterMCPTool[DiffRequest](srv, tool, s.logged("ssrdiff_diff", endpoint))
}

// --- history ---

type historyReq struct {
	URL   string `json:"url"`
	Limit int    `json:"limit"`
}

func (s *Service) registerHistoryTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "ssrdiff_history",
		Description: "List recent comparison summaries, optionally for one page.",
		InputSchema: kit.InputSchema(map[string]any{
			"url":   map[string]any{"type": "string", "description": "Only comparisons of this page URL"},
			"limit": map[string]any{"type": "integer", "description": "Maximum entries (default 50)"},
		}, nil),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*historyReq)
		entries, err := s.PageHistory(ctx, r.URL, r.Limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": entries}, nil
	}
	kit.RegisterMCPTool[historyReq](srv, tool, s.logged("ssrdiff_history", endpoint))
}

func (s *Service) logged(op string, e kit.Endpoint) kit.Endpoint {
	return kit.Chain(kit.Logging(s.logger, op), kit.Recover())(e)
}
