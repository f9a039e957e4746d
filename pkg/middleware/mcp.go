// Package middleware provides MCP protocol-level middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	methodToolsCall = "tools/call"
	tracerName      = "github.com/txn2/plotwatch/pkg/middleware"
	slogKeyError    = "error"
)

// MCPToolCallMiddleware creates MCP protocol-level middleware that traces
// and logs tools/call requests. Other methods pass through untouched.
//
// A tool that reports IsError is logged at warn level; the result itself is
// returned to the client unchanged.
func MCPToolCallMiddleware() mcp.Middleware {
	tracer := otel.Tracer(tracerName)
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			toolName, err := extractToolName(req)
			if err != nil {
				return createErrorResult(fmt.Sprintf("invalid request: %v", err)), nil
			}

			ctx, span := tracer.Start(ctx, "mcp.tools_call",
				trace.WithAttributes(attribute.String("mcp.tool", toolName)))
			defer span.End()

			start := time.Now()
			result, err := next(ctx, method, req)
			elapsed := time.Since(start)

			switch {
			case err != nil:
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				slog.Error("middleware: tool call failed", "tool", toolName, "duration", elapsed, slogKeyError, err)
			case isToolError(result):
				span.SetStatus(codes.Error, "tool error")
				slog.Warn("middleware: tool returned error", "tool", toolName, "duration", elapsed)
			default:
				slog.Debug("middleware: tool call", "tool", toolName, "duration", elapsed)
			}
			return result, err
		}
	}
}

// extractToolName extracts the tool name from a tools/call request.
func extractToolName(req mcp.Request) (string, error) {
	if req == nil {
		return "", errors.New("missing request")
	}
	callParams, ok := req.GetParams().(*mcp.CallToolParamsRaw)
	if !ok {
		return "", fmt.Errorf("unexpected params type: %T", req.GetParams())
	}
	// A typed nil pointer passes the assertion above.
	if callParams == nil {
		return "", errors.New("missing params")
	}
	if callParams.Name == "" {
		return "", errors.New("missing tool name")
	}
	return callParams.Name, nil
}

func isToolError(r mcp.Result) bool {
	res, ok := r.(*mcp.CallToolResult)
	return ok && res != nil && res.IsError
}

func createErrorResult(msg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
