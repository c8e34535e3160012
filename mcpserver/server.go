// Package mcpserver exposes the drafting controller as MCP tools over stdio.
package mcpserver

import (
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tbxark/draftagent/agent"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = map[string]toolEntry{
	"draft_new_session": {
		def: mcp.NewTool("draft_new_session",
			mcp.WithDescription("Start a new drafting session and return its id."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleNewSession },
	},
	"draft_submit_message": {
		def: mcp.NewTool("draft_submit_message",
			mcp.WithDescription("Send one user message to a drafting session. Returns the next question or the generated document."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id. Unknown ids start a new session.")),
			mcp.WithString("message", mcp.Required(), mcp.Description("The user's message")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSubmitMessage },
	},
	"draft_session": {
		def: mcp.NewTool("draft_session",
			mcp.WithDescription("Return the stored state of a drafting session."),
			mcp.WithString("session_id", mcp.Required()),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSession },
	},
	"draft_abandon": {
		def: mcp.NewTool("draft_abandon",
			mcp.WithDescription("Abandon an open drafting session."),
			mcp.WithString("session_id", mcp.Required()),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleAbandon },
	},
	"draft_patch_session": {
		def: mcp.NewTool("draft_patch_session",
			mcp.WithDescription("Replace field values in the document of a completed session."),
			mcp.WithString("session_id", mcp.Required()),
			mcp.WithObject("updates", mcp.Required(), mcp.Description("Map of field name to new value")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePatchSession },
	},
	"document_patch": {
		def: mcp.NewTool("document_patch",
			mcp.WithDescription("Apply named values to the listed occurrences in a document without a session."),
			mcp.WithString("document", mcp.Required()),
			mcp.WithArray("values", mcp.Required(), mcp.Description("Named values with their occurrences"),
				mcp.Items(map[string]any{"type": "object"})),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDocumentPatch },
	},
}

// ToolNames returns the sorted names of all tools.
func ToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewServer creates an MCP server with every drafting tool registered.
func NewServer(controller *agent.Controller, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"draftagent",
		version,
		server.WithToolCapabilities(true),
	)
	h := NewHandlers(controller)
	for _, entry := range toolRegistry {
		s.AddTool(entry.def, entry.handler(h))
	}
	return s
}

// Run serves the tools on stdio until the input closes.
func Run(controller *agent.Controller, version string) error {
	return server.ServeStdio(NewServer(controller, version))
}
