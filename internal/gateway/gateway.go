// Package gateway exposes the toolbox over a JSON-RPC 2.0 stdio
// transport in the MCP style: tools/list and tools/call.
package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	. "github.com/AuraCoreDynamics/aurarouter/internal/logging"
	"github.com/AuraCoreDynamics/aurarouter/internal/tools"
)

const protocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Gateway reads JSON-RPC requests line by line from in and writes
// responses to out. Writes are serialized; tool calls run inline.
type Gateway struct {
	registry   *tools.Registry
	serverName string
	version    string

	in  io.Reader
	out io.Writer
	wMu sync.Mutex
}

// New creates a gateway bound to the given streams.
func New(registry *tools.Registry, serverName, version string, in io.Reader, out io.Writer) *Gateway {
	return &Gateway{
		registry:   registry,
		serverName: serverName,
		version:    version,
		in:         in,
		out:        out,
	}
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Serve processes requests until in closes or ctx is cancelled.
func (g *Gateway) Serve(ctx context.Context) error {
	scanner := bufio.NewScanner(g.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	L_info("gateway serving", "tools", g.registry.Len())

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			g.writeError(nil, codeParseError, "parse error")
			continue
		}

		g.dispatch(ctx, &req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("gateway read: %w", err)
	}
	L_info("gateway input closed")
	return nil
}

func (g *Gateway) dispatch(ctx context.Context, req *request) {
	// Notifications (no id) get no response.
	notification := len(req.ID) == 0 || string(req.ID) == "null"

	switch req.Method {
	case "initialize":
		g.writeResult(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    g.serverName,
				"version": g.version,
			},
		})

	case "notifications/initialized":
		// client handshake complete, nothing to send

	case "ping":
		g.writeResult(req.ID, map[string]any{})

	case "tools/list":
		g.writeResult(req.ID, map[string]any{
			"tools": g.registry.Definitions(),
		})

	case "tools/call":
		g.handleToolCall(ctx, req)

	default:
		if notification {
			L_debug("ignoring unknown notification", "method", req.Method)
			return
		}
		g.writeError(req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (g *Gateway) handleToolCall(ctx context.Context, req *request) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		g.writeError(req.ID, codeInvalidParams, "invalid tool call params")
		return
	}

	args := params.Arguments
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	if !g.registry.Has(params.Name) {
		g.writeError(req.ID, codeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
		return
	}

	L_debug("tool call", "tool", params.Name)
	text, err := g.registry.Execute(ctx, params.Name, args)
	if err != nil {
		// Tool-level failure travels as an in-band result, not an
		// RPC error, so clients can surface it to the model.
		g.writeResult(req.ID, map[string]any{
			"content": []map[string]any{{"type": "text", "text": err.Error()}},
			"isError": true,
		})
		return
	}

	g.writeResult(req.ID, map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
}

func (g *Gateway) writeResult(id json.RawMessage, result any) {
	g.write(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (g *Gateway) writeError(id json.RawMessage, code int, message string) {
	g.write(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (g *Gateway) write(resp response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		L_error("gateway response marshal failed", "error", err)
		return
	}

	g.wMu.Lock()
	defer g.wMu.Unlock()
	if _, err := g.out.Write(append(payload, '\n')); err != nil {
		L_error("gateway write failed", "error", err)
	}
}
