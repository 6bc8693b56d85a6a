// Package provider defines the narrow interface the registry expects from
// an agent runtime's model backend. The registry never calls a model itself;
// the runtime does, reporting outcomes back through the feedback loop.
package provider

import "context"

// Invoker is the model backend contract.
type Invoker interface {
	// Invoke sends a completion request and returns the response.
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error)
	// Embed converts text to an embedding vector. Backends without an
	// embedding model return nil, nil and vector features degrade.
	Embed(ctx context.Context, text string) ([]float32, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// InvokeRequest contains the parameters for a completion request.
type InvokeRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// InvokeResponse contains the response from a completion request.
type InvokeResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolCall represents a tool call requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
