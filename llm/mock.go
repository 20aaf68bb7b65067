package llm

import (
	"context"
	"sync"
)

// MockProvider is a scriptable provider for tests. Responses are
// served in the order they were queued; when the queue is empty the
// static response is returned.
type MockProvider struct {
	mu        sync.Mutex
	response  string
	queue     []Completion
	err       error
	callCount int
	prompts   []string
	systems   []string
	available bool

	// InvokeFunc can be overridden for custom behavior.
	InvokeFunc func(ctx context.Context, prompt, system string) (string, error)
}

// NewMockProvider creates a new mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{available: true}
}

// SetResponse sets the static response content.
func (p *MockProvider) SetResponse(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.response = content
}

// QueueResponse appends a scripted completion served before the
// static response.
func (p *MockProvider) QueueResponse(text string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, Completion{Text: text, Err: err})
}

// SetError sets an error returned by every call.
func (p *MockProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetAvailable overrides readiness.
func (p *MockProvider) SetAvailable(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.available = ok
}

// CallCount returns the number of Invoke calls made.
func (p *MockProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

// LastPrompt returns the most recent prompt, or "".
func (p *MockProvider) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.prompts) == 0 {
		return ""
	}
	return p.prompts[len(p.prompts)-1]
}

// LastSystem returns the most recent system instruction, or "".
func (p *MockProvider) LastSystem() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.systems) == 0 {
		return ""
	}
	return p.systems[len(p.systems)-1]
}

// Invoke implements the Provider interface.
func (p *MockProvider) Invoke(ctx context.Context, prompt, system string) (string, error) {
	p.mu.Lock()
	p.callCount++
	p.prompts = append(p.prompts, prompt)
	p.systems = append(p.systems, system)
	fn := p.InvokeFunc
	if fn == nil {
		if len(p.queue) > 0 {
			next := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()
			return next.Text, next.Err
		}
		response, err := p.response, p.err
		p.mu.Unlock()
		return response, err
	}
	p.mu.Unlock()
	return fn(ctx, prompt, system)
}

// InvokeAsync implements the Provider interface.
func (p *MockProvider) InvokeAsync(ctx context.Context, prompt, system string) <-chan Completion {
	return invokeAsync(p, ctx, prompt, system)
}

// Embed implements the Provider interface.
func (p *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return fallbackEmbedding(text), nil
}

// Available implements the Provider interface.
func (p *MockProvider) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}
