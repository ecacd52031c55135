package testkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/louisbranch/orderflow/internal/remote"
)

// FakeProxy is an in-memory remote.Proxy for workflow tests.
type FakeProxy struct {
	mu sync.Mutex
	// Resources maps links to canned resources.
	Resources map[string]remote.Resource
	// CommandErr, when set, fails every command invocation.
	CommandErr error
	// CommandResults maps command names to canned results.
	CommandResults map[string]remote.Resource

	commands []string
}

// NewFakeProxy creates an empty fake proxy.
func NewFakeProxy() *FakeProxy {
	return &FakeProxy{
		Resources:      make(map[string]remote.Resource),
		CommandResults: make(map[string]remote.Resource),
	}
}

// Resolve implements remote.Proxy.
func (p *FakeProxy) Resolve(_ context.Context, link string) (remote.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	resource, ok := p.Resources[link]
	if !ok {
		return remote.Resource{}, fmt.Errorf("no resource at %s", link)
	}
	return resource, nil
}

// Command implements remote.Proxy.
func (p *FakeProxy) Command(_ context.Context, _ remote.Resource, name string, _ map[string]any) (remote.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.commands = append(p.commands, name)
	if p.CommandErr != nil {
		return remote.Resource{}, p.CommandErr
	}
	return p.CommandResults[name], nil
}

// Commands returns invoked command names in order.
func (p *FakeProxy) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.commands...)
}
