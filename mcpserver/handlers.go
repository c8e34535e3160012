package mcpserver

import (
	"context"

	"github.com/bytedance/sonic"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tbxark/draftagent/agent"
	"github.com/tbxark/draftagent/errors"
	"github.com/tbxark/draftagent/types"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	controller *agent.Controller
}

func NewHandlers(controller *agent.Controller) *Handlers {
	return &Handlers{controller: controller}
}

type SubmitMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type SessionRequest struct {
	SessionID string `json:"session_id"`
}

type PatchSessionRequest struct {
	SessionID string            `json:"session_id"`
	Updates   map[string]string `json:"updates"`
}

type DocumentPatchRequest struct {
	Document string             `json:"document"`
	Values   []types.NamedValue `json:"values"`
}

func (h *Handlers) HandleNewSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := h.controller.NewSession(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"session_id": s.ID, "status": s.Status})
}

func (h *Handlers) HandleSubmitMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SubmitMessageRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if _, err := h.controller.Open(ctx, input.SessionID); err != nil {
		return errorResult(err), nil
	}
	reply, err := h.controller.SubmitMessage(ctx, input.SessionID, input.Message)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(reply)
}

func (h *Handlers) HandleSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	s, err := h.controller.Session(ctx, input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

func (h *Handlers) HandleAbandon(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	s, err := h.controller.Abandon(ctx, input.SessionID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"session_id": s.ID, "status": s.Status})
}

func (h *Handlers) HandlePatchSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PatchSessionRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	reply, err := h.controller.PatchSessionDocument(ctx, input.SessionID, input.Updates)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(reply)
}

func (h *Handlers) HandleDocumentPatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DocumentPatchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result := h.controller.PatchDocument(input.Document, input.Values)
	return successResult(result)
}

// errorResult creates an MCP error result from any error.
// Details of internal errors are withheld.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any
	if dErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":      dErr.Code,
			"message":   dErr.Message,
			"retryable": dErr.Retryable,
		}
		if dErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if dErr.Details != nil {
			errorObj["details"] = dErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := sonic.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
