package notes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	ToolAdd       = "add_notes"
	ToolRead      = "read_notes"
	LatestURI     = "notes://latest"
	PromptSummary = "note_summary_prompt"
	serverName    = "AI Sticky Notes"
)

var addSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"message": {"type": "string", "description": "The note content to be added"}
	},
	"required": ["message"]
}`)

// Server exposes a Store over the MCP protocol.
type Server struct {
	store  *Store
	server *mcp.Server
}

// NewServer creates an MCP server with the notes tools, the latest-note
// resource and the summary prompt registered.
func NewServer(store *Store, version string) *Server {
	s := &Server{
		store: store,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: version,
		}, nil),
	}

	s.server.AddTool(&mcp.Tool{
		Name:        ToolAdd,
		Description: "Append a new note to the sticky notes.",
		InputSchema: addSchema,
	}, s.addNotes)
	s.server.AddTool(&mcp.Tool{
		Name:        ToolRead,
		Description: "Read all sticky notes.",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}, s.readNotes)
	s.server.AddResource(&mcp.Resource{
		URI:         LatestURI,
		Name:        "latest_note",
		Description: "The most recently added note.",
		MIMEType:    "text/plain",
	}, s.latest)
	s.server.AddPrompt(&mcp.Prompt{
		Name:        PromptSummary,
		Description: "A prompt asking to summarize the notes.",
	}, s.summary)

	return s
}

// Serve reads MCP requests from in and writes responses to out until ctx is
// cancelled or the transport closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return s.run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(in),
		Writer: nopWriteCloser{out},
	})
}

func (s *Server) run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func (s *Server) addNotes(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Message string `json:"message"`
	}
	if raw := req.Params.Arguments; len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
	}
	if _, err := s.store.Add(ctx, args.Message); err != nil {
		return toolError(err), nil
	}
	return toolText(AddedText), nil
}

func (s *Server) readNotes(ctx context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := s.store.Text(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return toolText(text), nil
}

func (s *Server) latest(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	n, err := s.store.Latest(ctx)
	if err != nil {
		return nil, err
	}
	text := NoNotesText
	if n != nil {
		text = n.Content + "\n"
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     text,
		}},
	}, nil
}

func (s *Server) summary(ctx context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	text, err := s.store.SummaryPrompt(ctx)
	if err != nil {
		return nil, err
	}
	return &mcp.GetPromptResult{
		Description: "Summarize the sticky notes",
		Messages: []*mcp.PromptMessage{{
			Role:    "user",
			Content: &mcp.TextContent{Text: text},
		}},
	}, nil
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
