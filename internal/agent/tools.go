package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Asishkarthikeya/Codebase-Agent/internal/graph"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/llm"
	"github.com/Asishkarthikeya/Codebase-Agent/internal/retrieval"
)

// Toolbox holds the tool implementations the agent loop can dispatch to.
type Toolbox struct {
	Sandbox  *Sandbox
	Composer *retrieval.Composer
	Graph    *graph.Graph
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

func schema(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Tools describes the available tools for the model.
func (t *Toolbox) Tools() []llm.Tool {
	tools := []llm.Tool{
		{
			Name:        "search_codebase",
			Description: "Semantic search over the indexed codebase. Returns the most relevant code chunks for a natural language query.",
			Parameters: schema([]string{"query"}, map[string]any{
				"query": prop("string", "What to look for, in natural language."),
			}),
		},
		{
			Name:        "list_files",
			Description: "List the entries of a directory in the repository. Directories end with a slash.",
			Parameters: schema(nil, map[string]any{
				"path": prop("string", "Repository-relative directory, defaults to the root."),
			}),
		},
		{
			Name:        "read_file",
			Description: "Read a file from the repository. Files over 12000 bytes are refused; search instead.",
			Parameters: schema([]string{"path"}, map[string]any{
				"path": prop("string", "Repository-relative file path."),
			}),
		},
	}
	if t.Graph != nil {
		tools = append(tools,
			llm.Tool{
				Name:        "find_callers",
				Description: "Find the functions and methods that call a symbol.",
				Parameters: schema([]string{"symbol"}, map[string]any{
					"symbol": prop("string", "Function, method (Class.method) or qualified symbol name."),
				}),
			},
			llm.Tool{
				Name:        "find_callees",
				Description: "Find the functions and methods a symbol calls.",
				Parameters: schema([]string{"symbol"}, map[string]any{
					"symbol": prop("string", "Function, method (Class.method) or qualified symbol name."),
				}),
			},
			llm.Tool{
				Name:        "find_call_chain",
				Description: "Find the shortest call path between two symbols.",
				Parameters: schema([]string{"from", "to"}, map[string]any{
					"from": prop("string", "The calling symbol."),
					"to":   prop("string", "The called symbol."),
				}),
			},
		)
	}
	return tools
}

// Dispatch executes one tool call and returns the model-facing result.
// Invalid input and execution failures come back as readable strings so
// the model can recover.
func (t *Toolbox) Dispatch(ctx context.Context, call llm.ToolCall) string {
	var args map[string]string
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: could not parse arguments for %s: %v", call.Name, err)
		}
	}

	switch call.Name {
	case "search_codebase":
		query := strings.TrimSpace(args["query"])
		if query == "" {
			return "Error: search_codebase requires a non-empty query."
		}
		return t.search(ctx, query)
	case "list_files":
		return t.Sandbox.ListFiles(args["path"])
	case "read_file":
		path := strings.TrimSpace(args["path"])
		if path == "" {
			return "Error: read_file requires a path."
		}
		return t.Sandbox.ReadFile(path)
	case "find_callers":
		return t.withSymbol(args["symbol"], func(n *graph.Node) []*graph.Node {
			return t.Graph.Callers(n.ID)
		}, "is not called by anything in the indexed code")
	case "find_callees":
		return t.withSymbol(args["symbol"], func(n *graph.Node) []*graph.Node {
			return t.Graph.Callees(n.ID)
		}, "does not call anything in the indexed code")
	case "find_call_chain":
		return t.callChain(args["from"], args["to"])
	default:
		return fmt.Sprintf("Error: unknown tool %q.", call.Name)
	}
}

// searchResultChars caps each search hit fed back to the model. Oversized
// chunks blow through provider token budgets inside a single tool round.
const searchResultChars = 2000

func (t *Toolbox) search(ctx context.Context, query string) string {
	results, err := t.Composer.Retrieve(ctx, query)
	if err != nil {
		return fmt.Sprintf("Error: search failed: %v", err)
	}
	if len(results) == 0 {
		return "No matching code found."
	}
	var b strings.Builder
	for i, r := range results {
		content := r.Content
		if len(content) > searchResultChars {
			content = content[:searchResultChars] + "\n... (truncated, read_file for the rest)"
		}
		fmt.Fprintf(&b, "--- Result %d: %s ---\n%s\n\n", i+1, r.FilePath, content)
	}
	return b.String()
}

func (t *Toolbox) withSymbol(symbol string, related func(*graph.Node) []*graph.Node, emptyMsg string) string {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "Error: a symbol name is required."
	}
	if t.Graph == nil {
		return "Error: the knowledge graph is not available."
	}
	nodes := t.Graph.Resolve(symbol)
	if len(nodes) == 0 {
		return fmt.Sprintf("Symbol %q not found in the knowledge graph.", symbol)
	}
	var b strings.Builder
	for _, n := range nodes {
		rel := related(n)
		if len(rel) == 0 {
			fmt.Fprintf(&b, "%s %s\n", describeNode(n), emptyMsg)
			continue
		}
		fmt.Fprintf(&b, "%s:\n", describeNode(n))
		for _, r := range rel {
			fmt.Fprintf(&b, "  - %s\n", describeNode(r))
		}
	}
	return b.String()
}

func (t *Toolbox) callChain(from, to string) string {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" || to == "" {
		return "Error: find_call_chain requires both from and to."
	}
	if t.Graph == nil {
		return "Error: the knowledge graph is not available."
	}
	fromNodes := t.Graph.Resolve(from)
	if len(fromNodes) == 0 {
		return fmt.Sprintf("Symbol %q not found in the knowledge graph.", from)
	}
	toNodes := t.Graph.Resolve(to)
	if len(toNodes) == 0 {
		return fmt.Sprintf("Symbol %q not found in the knowledge graph.", to)
	}
	for _, f := range fromNodes {
		for _, g := range toNodes {
			if chain := t.Graph.CallChain(f.ID, g.ID); chain != nil {
				parts := make([]string, len(chain))
				for i, n := range chain {
					parts[i] = describeNode(n)
				}
				return strings.Join(parts, "\n  -> ")
			}
		}
	}
	return fmt.Sprintf("No call path from %q to %q.", from, to)
}

func describeNode(n *graph.Node) string {
	if n.FilePath == "" {
		return fmt.Sprintf("%s (%s)", n.Name, n.Kind)
	}
	if n.StartLine > 0 {
		return fmt.Sprintf("%s (%s, %s:%d)", n.Name, n.Kind, n.FilePath, n.StartLine)
	}
	return fmt.Sprintf("%s (%s, %s)", n.Name, n.Kind, n.FilePath)
}
