package rpc

import (
	"encoding/json"
	"fmt"
)

// Client types - communication protocols used by providers
const (
	ClientTypeRPC = "rpc" // JSON-RPC protocol
)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	ID      any    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	ID      any             `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// AuthConfig holds authentication configuration for an RPC endpoint.
type AuthConfig struct {
	Type     string            `json:"type"`     // "bearer", "api_key", "basic", "custom"
	Token    string            `json:"token"`    // For bearer/api_key
	Username string            `json:"username"` // For basic auth
	Password string            `json:"password"` // For basic auth
	Headers  map[string]string `json:"headers"`  // Custom headers
}
