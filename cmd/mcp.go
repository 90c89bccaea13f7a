package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/agent"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/engine"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing codebase search and call-graph tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	e, err := openEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	toolbox, err := e.Toolbox()
	if err != nil {
		return err
	}

	s := mcpserver.NewMCPServer("codebase-agent", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchCodebaseTool(), dispatchHandler(toolbox, "search_codebase", "query"))
	s.AddTool(listFilesTool(), dispatchHandler(toolbox, "list_files", "path"))
	s.AddTool(readFileTool(), dispatchHandler(toolbox, "read_file", "path"))
	if toolbox.Graph != nil {
		s.AddTool(findCallersTool(), dispatchHandler(toolbox, "find_callers", "symbol"))
		s.AddTool(findCalleesTool(), dispatchHandler(toolbox, "find_callees", "symbol"))
		s.AddTool(findCallChainTool(), dispatchHandler(toolbox, "find_call_chain", "from", "to"))
	}
	s.AddTool(healthTool(), makeHealthHandler(e))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search the indexed codebase. Returns the most relevant code chunks with file paths and line numbers."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language query to search the codebase"),
		),
	)
}

func listFilesTool() mcp.Tool {
	return mcp.NewTool("list_files",
		mcp.WithDescription("List the entries of a directory in the indexed repository. Directories end with a slash."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Description("Repository-relative directory, defaults to the root"),
		),
	)
}

func readFileTool() mcp.Tool {
	return mcp.NewTool("read_file",
		mcp.WithDescription("Read a file from the indexed repository. Large files are refused; search instead."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Repository-relative file path"),
		),
	)
}

func findCallersTool() mcp.Tool {
	return mcp.NewTool("find_callers",
		mcp.WithDescription("Find the functions and methods that call a symbol, from the knowledge graph."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Function, method (Class.method) or qualified symbol name"),
		),
	)
}

func findCalleesTool() mcp.Tool {
	return mcp.NewTool("find_callees",
		mcp.WithDescription("Find the functions and methods a symbol calls, from the knowledge graph."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("symbol",
			mcp.Required(),
			mcp.Description("Function, method (Class.method) or qualified symbol name"),
		),
	)
}

func findCallChainTool() mcp.Tool {
	return mcp.NewTool("find_call_chain",
		mcp.WithDescription("Find the shortest call path between two symbols in the knowledge graph."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("The calling symbol"),
		),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("The called symbol"),
		),
	)
}

func healthTool() mcp.Tool {
	return mcp.NewTool("index_health",
		mcp.WithDescription("Report the state of the index: document count, graph size, backend and provider."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

// dispatchHandler reuses the agent tool dispatcher so MCP calls go through
// the same validation and formatting as model tool calls.
func dispatchHandler(toolbox *agent.Toolbox, name string, keys ...string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]string, len(keys))
		for _, k := range keys {
			if v := req.GetString(k, ""); v != "" {
				args[k] = v
			}
		}
		raw, err := json.Marshal(args)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode arguments: %v", err)), nil
		}
		result := toolbox.Dispatch(ctx, llm.ToolCall{ID: name, Name: name, Arguments: string(raw)})
		return mcp.NewToolResultText(result), nil
	}
}

func makeHealthHandler(e *engine.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		h, err := e.Health(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("health check failed: %v", err)), nil
		}
		out, err := json.MarshalIndent(h, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode health: %v", err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}
