package drivers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPBinding is the binding type the MCP driver executes: the name of a
// tool exposed by a connected MCP server.
type MCPBinding struct {
	Tool string
}

// ToolCaller abstracts MCP tool execution so the driver can be tested
// without a live server.
type ToolCaller interface {
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// MCP runs specs whose binding names a tool on an MCP server. It stands in
// for external ML and tool runtimes that live outside the process.
type MCP struct {
	caller ToolCaller
}

// NewMCP creates the MCP driver around an existing caller.
func NewMCP(caller ToolCaller) (*MCP, error) {
	if caller == nil {
		return nil, errors.New("mcp caller is required")
	}
	return &MCP{caller: caller}, nil
}

// NewMCPStdio creates the MCP driver around a stdio subprocess server.
func NewMCPStdio(ctx context.Context, command string, args ...string) (*MCP, error) {
	stdioClient, err := mcpclient.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, err
	}
	if err := stdioClient.Start(ctx); err != nil {
		return nil, err
	}
	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{Name: "axon", Version: "1.0.0"}
	if _, err := stdioClient.Initialize(ctx, initRequest); err != nil {
		return nil, err
	}
	return &MCP{caller: stdioClient}, nil
}

// Invoke implements executor.Driver.
func (d *MCP) Invoke(ctx context.Context, binding any, input any) (any, error) {
	bound, err := mcpBindingOf(binding)
	if err != nil {
		return nil, err
	}
	args, err := toolArgs(input)
	if err != nil {
		return nil, err
	}

	request := mcp.CallToolRequest{}
	request.Params.Name = bound.Tool
	request.Params.Arguments = args

	result, err := d.caller.CallTool(ctx, request)
	if err != nil {
		return nil, err
	}
	return toolOutput(result)
}

func mcpBindingOf(binding any) (MCPBinding, error) {
	switch b := binding.(type) {
	case MCPBinding:
		if b.Tool == "" {
			return MCPBinding{}, errors.New("mcp binding has no tool name")
		}
		return b, nil
	case *MCPBinding:
		if b == nil || b.Tool == "" {
			return MCPBinding{}, errors.New("mcp binding has no tool name")
		}
		return *b, nil
	case string:
		if b == "" {
			return MCPBinding{}, errors.New("mcp binding has no tool name")
		}
		return MCPBinding{Tool: b}, nil
	default:
		return MCPBinding{}, fmt.Errorf("binding of type %T is not an mcp tool", binding)
	}
}

func toolArgs(input any) (map[string]any, error) {
	switch value := input.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return value, nil
	case []byte:
		var decoded map[string]any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return nil, fmt.Errorf("mcp tool args: invalid JSON: %w", err)
		}
		return decoded, nil
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return map[string]any{}, nil
		}
		if strings.HasPrefix(trimmed, "{") {
			var decoded map[string]any
			if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
				return decoded, nil
			}
		}
		return map[string]any{"input": value}, nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("mcp tool args: unsupported type %T", input)
		}
		var decoded map[string]any
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			return nil, fmt.Errorf("mcp tool args: invalid JSON after marshal: %w", err)
		}
		return decoded, nil
	}
}

func toolOutput(result *mcp.CallToolResult) (any, error) {
	if result == nil {
		return nil, errors.New("mcp tool result is nil")
	}
	if result.IsError {
		return nil, fmt.Errorf("mcp tool returned error: %s", textContent(result.Content))
	}
	if result.StructuredContent != nil {
		return result.StructuredContent, nil
	}
	if text := textContent(result.Content); text != "" {
		return text, nil
	}
	return result, nil
}

func textContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
