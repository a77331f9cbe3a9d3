// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dispatcher

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// rpcMessage is the minimal JSON-RPC 2.0 envelope this server speaks:
// newline-delimited JSON objects over stdin/stdout, one message per line.
// The framing library itself (negotiating capabilities, keeping the
// initialize handshake in sync with a client SDK) is treated as an
// external collaborator; this is only the contract boundary the two
// tools are exposed through.
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ServerInfo      serverInfo             `json:"serverInfo"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

type toolsListResult struct {
	Tools []tool `json:"tools"`
}

type toolsCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolsCallResult struct {
	Content []content `json:"content"`
	IsError bool      `json:"isError"`
}

const protocolVersion = "2024-11-05"

// Server drives the stdio JSON-RPC loop for a Dispatcher: one
// initialize handshake, then tools/list and tools/call requests read
// one line at a time until the input closes or ctx is canceled.
type Server struct {
	dispatcher *Dispatcher
	in         *bufio.Scanner
	out        *json.Encoder
	mu         sync.Mutex // serializes writes to out
}

// NewServer builds a Server reading requests from r and writing
// responses to w.
func NewServer(d *Dispatcher, r io.Reader, w io.Writer) *Server {
	return &Server{
		dispatcher: d,
		in:         bufio.NewScanner(r),
		out:        json.NewEncoder(w),
	}
}

// Serve runs the handshake and then the request loop until the input is
// exhausted or ctx is canceled. Each request is handled synchronously in
// arrival order; RunQueryReadOnly's own hard deadline is what keeps one
// slow request from starving the loop indefinitely.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.handshake(); err != nil {
		return err
	}

	for s.in.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := s.in.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		if msg.Method == "" {
			continue
		}
		s.handle(ctx, &msg)
	}
	return s.in.Err()
}

func (s *Server) handshake() error {
	if !s.in.Scan() {
		return fmt.Errorf("dispatcher: no initialize request")
	}
	var initReq rpcMessage
	if err := json.Unmarshal(s.in.Bytes(), &initReq); err != nil {
		return fmt.Errorf("dispatcher: parsing initialize request: %w", err)
	}

	if err := s.write(rpcMessage{
		JSONRPC: "2.0",
		ID:      initReq.ID,
		Result: initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]interface{}{"tools": map[string]interface{}{}},
			ServerInfo:      serverInfo{Name: "readonlysql-gateway", Version: "1.0.0"},
		},
	}); err != nil {
		return err
	}

	if !s.in.Scan() {
		return fmt.Errorf("dispatcher: no initialized notification")
	}
	var notif rpcMessage
	if err := json.Unmarshal(s.in.Bytes(), &notif); err != nil {
		return fmt.Errorf("dispatcher: parsing initialized notification: %w", err)
	}
	if notif.Method != "notifications/initialized" {
		return fmt.Errorf("dispatcher: expected notifications/initialized, got %q", notif.Method)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, msg *rpcMessage) {
	switch msg.Method {
	case "tools/list":
		s.handleToolsList(msg)
	case "tools/call":
		s.handleToolsCall(ctx, msg)
	default:
		s.sendError(msg.ID, -32601, fmt.Sprintf("unknown method: %s", msg.Method))
	}
}

func (s *Server) handleToolsList(msg *rpcMessage) {
	result := toolsListResult{Tools: []tool{
		{
			Name:        "list_connections",
			Description: "List every configured database connection: name, engine type, description, effective server endpoints, default database, and user. Takes no arguments.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        "run_query_read_only",
			Description: "Run a single read-only SQL query against a configured connection and return the result as tab-separated values. Only SELECT-shaped, single-statement queries are accepted; transaction-control statements are rejected.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"connection_name": map[string]interface{}{
						"type":        "string",
						"description": "Name of a connection returned by list_connections.",
					},
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The SQL query to run.",
					},
					"server": map[string]interface{}{
						"type":        "string",
						"description": "Optional: which of the connection's servers to target. Defaults to the first configured server.",
					},
					"file_path": map[string]interface{}{
						"type":        "string",
						"description": "Optional: write the full result to this path instead of returning it inline, and return the resolved absolute path. The path must not already exist.",
					},
				},
				"required": []string{"connection_name", "query"},
			},
		},
	}}
	s.writeOrLog(rpcMessage{JSONRPC: "2.0", ID: msg.ID, Result: result})
}

func (s *Server) handleToolsCall(ctx context.Context, msg *rpcMessage) {
	var params toolsCallParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		s.sendError(msg.ID, -32602, fmt.Sprintf("invalid params: %v", err))
		return
	}

	var (
		text    string
		callErr error
	)
	switch params.Name {
	case "list_connections":
		text, callErr = s.dispatcher.ListConnections(ctx)
	case "run_query_read_only":
		connectionName, _ := params.Arguments["connection_name"].(string)
		query, _ := params.Arguments["query"].(string)
		server, _ := params.Arguments["server"].(string)
		filePath, _ := params.Arguments["file_path"].(string)
		text, callErr = s.dispatcher.RunQueryReadOnly(ctx, connectionName, query, server, filePath)
	default:
		s.sendError(msg.ID, -32601, fmt.Sprintf("unknown tool: %s", params.Name))
		return
	}

	if callErr != nil {
		s.writeOrLog(rpcMessage{
			JSONRPC: "2.0",
			ID:      msg.ID,
			Result: toolsCallResult{
				Content: []content{{Type: "text", Text: callErr.Error()}},
				IsError: true,
			},
		})
		return
	}

	s.writeOrLog(rpcMessage{
		JSONRPC: "2.0",
		ID:      msg.ID,
		Result: toolsCallResult{
			Content: []content{{Type: "text", Text: text}},
			IsError: false,
		},
	})
}

func (s *Server) sendError(id interface{}, code int, message string) {
	s.writeOrLog(rpcMessage{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(msg rpcMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Encode(msg)
}

func (s *Server) writeOrLog(msg rpcMessage) {
	if err := s.write(msg); err != nil {
		dispatchLog.Error("", "", "write_response_failed", map[string]interface{}{"error": err.Error()})
	}
}
