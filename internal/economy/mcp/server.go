// Package mcp serves the economy engine as Model Context Protocol tools over
// newline-delimited JSON-RPC on stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rsned/idle-economy-server/internal/economy/engine"
	"github.com/rsned/idle-economy-server/pkg/economy"
)

//go:generate go tool mockgen -destination=./mocks/engine_mock.go -package=mocks . Engine

// Engine answers the tool queries. *engine.Engine implements it.
type Engine interface {
	ActionProfit(ctx context.Context, req economy.ActionProfitRequest) (*economy.ActionProfitResponse, error)
	RewardTableValue(ctx context.Context, req economy.RewardTableValueRequest) (*economy.RewardTableValueResponse, error)
	TaskProfit(ctx context.Context, req economy.TaskProfitRequest) (*economy.TaskProfitResponse, error)
	ConsumptionRates(ctx context.Context, req economy.ConsumptionRatesRequest) (*economy.ConsumptionRatesResponse, error)
	MyListings(ctx context.Context) (*economy.MyListingsResponse, error)
	SessionStatus(ctx context.Context) (*economy.SessionStatusResponse, error)
}

// MethodHandler runs one JSON-RPC method.
type MethodHandler func(ctx context.Context, params json.RawMessage) (any, error)

type toolFunc func(ctx context.Context, args json.RawMessage) (any, error)

// Server dispatches JSON-RPC requests to the engine.
type Server struct {
	engine  Engine
	logger  *slog.Logger
	methods map[string]MethodHandler
	tools   map[string]toolFunc
}

// errInvalidParams marks handler errors caused by the caller's arguments.
var errInvalidParams = errors.New("invalid params")

// NewServer builds a server over eng. logger may be nil.
func NewServer(eng Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Server{engine: eng, logger: logger}
	s.methods = map[string]MethodHandler{
		"initialize": s.handleInitialize,
		"tools/list": s.handleToolsList,
		"tools/call": s.handleToolsCall,
	}
	s.tools = map[string]toolFunc{
		"action_profit":      s.toolActionProfit,
		"reward_table_value": s.toolRewardTableValue,
		"task_profit":        s.toolTaskProfit,
		"consumption_rates":  s.toolConsumptionRates,
		"my_listings": func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.engine.MyListings(ctx)
		},
		"session_status": func(ctx context.Context, _ json.RawMessage) (any, error) {
			return s.engine.SessionStatus(ctx)
		},
	}
	return s
}

// Run serves stdin to stdout.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve handles newline-delimited requests from r until EOF or ctx ends.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	enc := json.NewEncoder(w)

	s.logger.Info("mcp server listening on stdio", "tools", len(s.tools))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if len(strings.TrimSpace(string(line))) > 0 {
			if resp := s.handleRequest(ctx, line); resp != nil {
				if werr := enc.Encode(resp); werr != nil {
					s.logger.Error("writing response", "error", werr)
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
	}
}

// handleRequest returns nil for notifications.
func (s *Server) handleRequest(ctx context.Context, data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(nil, ErrCodeParse, "Parse error", err.Error())
	}

	s.logger.Debug("request", "method", req.Method, "id", req.ID)

	if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
		return nil
	}

	handler, ok := s.methods[req.Method]
	if !ok {
		return errorResponse(req.ID, ErrCodeMethodNotFound, "Method not found: "+req.Method, nil)
	}

	result, err := handler(ctx, req.Params)
	if err != nil {
		code := ErrCodeInternal
		if errors.Is(err, errInvalidParams) || errors.Is(err, engine.ErrInvalidRequest) {
			code = ErrCodeInvalidParams
		}
		return errorResponse(req.ID, code, err.Error(), nil)
	}
	return resultResponse(req.ID, result)
}

func (s *Server) handleInitialize(context.Context, json.RawMessage) (any, error) {
	return InitializeResult{
		ProtocolVersion: "2024-11-05",
		ServerInfo:      ServerInfo{Name: "idle-economy", Version: "0.1.0"},
		Capabilities:    Capabilities{Tools: &ToolsCapability{}},
	}, nil
}

func (s *Server) handleToolsList(context.Context, json.RawMessage) (any, error) {
	return ToolsListResult{Tools: GetToolDefinitions()}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, params json.RawMessage) (any, error) {
	var p ToolCallParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	tool, ok := s.tools[p.Name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool: %s", errInvalidParams, p.Name)
	}

	s.logger.Debug("tool call", "name", p.Name)

	result, err := tool(ctx, p.Arguments)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", p.Name, err)
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", p.Name, err)
	}
	return ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: string(text)}},
		IsError: hasToolError(result),
	}, nil
}

// hasToolError reports a neutral-state result carrying an error message.
func hasToolError(result any) bool {
	switch r := result.(type) {
	case *economy.ActionProfitResponse:
		return r.Error != ""
	case *economy.RewardTableValueResponse:
		return r.Error != ""
	case *economy.TaskProfitResponse:
		return r.Error != ""
	}
	return false
}
