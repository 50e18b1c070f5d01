package drivers

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

type fakeCaller struct {
	lastName string
	lastArgs any
	result   *mcp.CallToolResult
	err      error
}

func (f *fakeCaller) CallTool(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.lastName = request.Params.Name
	f.lastArgs = request.Params.Arguments
	return f.result, f.err
}

func TestMCPInvokeText(t *testing.T) {
	caller := &fakeCaller{result: &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "42"}},
	}}
	driver, err := NewMCP(caller)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	out, err := driver.Invoke(context.Background(), MCPBinding{Tool: "add"}, map[string]any{"a": 20, "b": 22})
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != "42" {
		t.Fatalf("unexpected output: %v", out)
	}
	if caller.lastName != "add" {
		t.Fatalf("unexpected tool name: %s", caller.lastName)
	}
	args, ok := caller.lastArgs.(map[string]any)
	if !ok || args["a"] != 20 {
		t.Fatalf("unexpected args: %v", caller.lastArgs)
	}
}

func TestMCPInvokeStringBinding(t *testing.T) {
	caller := &fakeCaller{result: &mcp.CallToolResult{StructuredContent: map[string]any{"ok": true}}}
	driver, _ := NewMCP(caller)

	out, err := driver.Invoke(context.Background(), "lookup", `{"q": "iris"}`)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	structured, ok := out.(map[string]any)
	if !ok || structured["ok"] != true {
		t.Fatalf("unexpected output: %v", out)
	}
	args := caller.lastArgs.(map[string]any)
	if args["q"] != "iris" {
		t.Fatalf("json string input not decoded: %v", args)
	}
}

func TestMCPToolError(t *testing.T) {
	caller := &fakeCaller{result: &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "boom"}},
	}}
	driver, _ := NewMCP(caller)

	if _, err := driver.Invoke(context.Background(), MCPBinding{Tool: "add"}, nil); err == nil {
		t.Fatalf("expected tool error to surface")
	}
}

func TestMCPRejectsEmptyBinding(t *testing.T) {
	driver, _ := NewMCP(&fakeCaller{})
	if _, err := driver.Invoke(context.Background(), MCPBinding{}, nil); err == nil {
		t.Fatalf("expected error for missing tool name")
	}
	if _, err := NewMCP(nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}
}
