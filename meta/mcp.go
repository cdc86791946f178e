// CLAUDE:SUMMARY Registers all domscribe MCP tools — set meta, get meta, set title, read title, render html, snapshot, restore, stats.
package meta

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domscribe/kit"
)

// RegisterMCP registers domscribe tools on an MCP server. Mutating tools
// wait for their queued operation to apply before replying, so a caller
// reading right after sees the new state.
func (r *Registry) RegisterMCP(srv *mcp.Server) {
	r.registerSetMetaTool(srv)
	r.registerGetMetaTool(srv)
	r.registerSetTitleTool(srv)
	r.registerTitleTool(srv)
	r.registerHTMLTool(srv)
	r.registerSnapshotTool(srv)
	r.registerRestoreTool(srv)
	r.registerStatsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool wraps the endpoint with call logging before handing it to the
// transport, so every tool invocation lands in the registry's log.
func (r *Registry) registerTool(srv *mcp.Server, tool *mcp.Tool, endpoint kit.Endpoint, decode func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error)) {
	kit.RegisterMCPTool(srv, tool, kit.Logging(tool.Name, r.log)(endpoint), decode)
}

// --- set_meta ---

type setMetaRequest struct {
	Entries map[string]any `json:"entries"`
}

func (r *Registry) registerSetMetaTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_set_meta",
		Description: "Set one or more metadata entries. Values are normalized: \"title\" key becomes the document title, og:/twitter:/article: keys become property tags, anything else a named tag. Structured values (objects) pass through on their own shape.",
		InputSchema: inputSchema(map[string]any{
			"entries": map[string]any{"type": "object", "description": "Key to value map (e.g. {\"og:title\": \"X\", \"description\": \"Y\"})"},
		}, []string{"entries"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*setMetaRequest)
		if err := r.SetMeta(rr.Entries).Wait(ctx); err != nil {
			return nil, err
		}
		// A "title" entry lands in the state slot and recomposes through a
		// queued rebuild; flush so the reply reflects it.
		if err := r.Flush(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"status": "applied", "count": len(rr.Entries)}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr setMetaRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}

// --- get_meta ---

type getMetaRequest struct {
	Key string `json:"key,omitempty"`
}

type getMetaResponse struct {
	Key    string  `json:"key"`
	Found  bool    `json:"found"`
	Record *Record `json:"record,omitempty"`
	HTML   string  `json:"html,omitempty"`
}

func (r *Registry) registerGetMetaTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_get_meta",
		Description: "Read metadata entries. With a key, returns that record and its rendered tag; without, returns every entry in store order.",
		InputSchema: inputSchema(map[string]any{
			"key": map[string]any{"type": "string", "description": "Entry key (omit for all entries)"},
		}, nil),
	}

	endpoint := func(_ context.Context, req any) (any, error) {
		rr := req.(*getMetaRequest)
		if rr.Key == "" {
			return r.GetAll(), nil
		}
		rec, ok := r.Get(rr.Key)
		resp := getMetaResponse{Key: rr.Key, Found: ok}
		if ok {
			resp.Record = &rec
			resp.HTML = Render(rec)
		}
		return resp, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr getMetaRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}

// --- set_title ---

type setTitleRequest struct {
	Main     string   `json:"main"`
	Segments []string `json:"segments,omitempty"`
}

func (r *Registry) registerSetTitleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_set_title",
		Description: "Replace the title hierarchy: the main title plus up to 10 ordered segments. The display title joins them with the configured separator.",
		InputSchema: inputSchema(map[string]any{
			"main":     map[string]any{"type": "string", "description": "Main title"},
			"segments": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "Ordered segments (max 10)"},
		}, []string{"main"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*setTitleRequest)
		if err := r.SetTitle(rr.Main, rr.Segments...).Wait(ctx); err != nil {
			return nil, err
		}
		// The composed title rebuild is itself queued; flush so the reply
		// reflects it.
		if err := r.Flush(ctx); err != nil {
			return nil, err
		}
		return r.GetTitles(ctx), nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr setTitleRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}

// --- title ---

func (r *Registry) registerTitleTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_title",
		Description: "Read the current title hierarchy: main, segments, and the composed display title.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return r.GetTitles(ctx), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}

// --- html ---

func (r *Registry) registerHTMLTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_html",
		Description: "Render the head fragment: one tag per entry, store order, newline-joined. Only meaningful without a live document.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"html":             r.HTML(),
			"document_present": r.Environment().DocumentPresent,
		}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}

// --- snapshot ---

func (r *Registry) registerSnapshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_snapshot",
		Description: "Serialize the registry to one JSON snapshot: every meta entry in store order plus the title hierarchy.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		b, err := r.Serialize(ctx)
		if err != nil {
			return nil, err
		}
		return json.RawMessage(b), nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}

// --- restore ---

type restoreRequest struct {
	Snapshot json.RawMessage `json:"snapshot"`
}

func (r *Registry) registerRestoreTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_restore",
		Description: "Restore a snapshot produced by domscribe_snapshot. Entries re-enter through normalization; the title hierarchy is re-issued. Malformed snapshots are logged and ignored.",
		InputSchema: inputSchema(map[string]any{
			"snapshot": map[string]any{"type": "object", "description": "Snapshot JSON ({meta, title})"},
		}, []string{"snapshot"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		rr := req.(*restoreRequest)
		if err := r.Restore(rr.Snapshot).Wait(ctx); err != nil {
			return nil, err
		}
		if err := r.Flush(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"status": "applied", "count": r.Count()}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var rr restoreRequest
		if err := json.Unmarshal(req.Params.Arguments, &rr); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &rr}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}

// --- stats ---

func (r *Registry) registerStatsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domscribe_stats",
		Description: "Get registry statistics: operating environment, entry count, and operation queue counters.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"environment": r.Environment(),
			"entries":     r.Count(),
			"queue":       r.QueueStats(),
		}, nil
	}

	decode := func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{Request: nil}, nil
	}

	r.registerTool(srv, tool, endpoint, decode)
}
