package provider

import "context"

// Fake is a canned Invoker for tests and offline runs.
type Fake struct {
	Model     string
	Response  InvokeResponse
	Embedding []float32
	Err       error

	// Requests records every Invoke call for assertions.
	Requests []InvokeRequest
}

var _ Invoker = (*Fake)(nil)

// Invoke records the request and returns the canned response.
func (f *Fake) Invoke(_ context.Context, req *InvokeRequest) (*InvokeResponse, error) {
	f.Requests = append(f.Requests, *req)
	if f.Err != nil {
		return nil, f.Err
	}
	resp := f.Response
	return &resp, nil
}

// Embed returns the canned embedding.
func (f *Fake) Embed(context.Context, string) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Embedding, nil
}

// DefaultModel returns the configured model name.
func (f *Fake) DefaultModel() string {
	if f.Model == "" {
		return "fake"
	}
	return f.Model
}
