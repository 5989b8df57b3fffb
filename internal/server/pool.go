package server

import (
	"context"
	"sync"

	"github.com/airlockhq/airlock/internal/workspace"
)

// Pool reuses workspaces across runs so each HTTP request does not pay
// the provisioning cost. Idle workspaces above maxIdle are removed.
type Pool struct {
	client  *workspace.Client
	cfg     workspace.Config
	maxIdle int

	mu   sync.Mutex
	idle []*workspace.Sandbox
}

// NewPool creates a pool backed by the given provider client.
func NewPool(client *workspace.Client, cfg workspace.Config, maxIdle int) *Pool {
	if maxIdle <= 0 {
		maxIdle = 2
	}
	return &Pool{
		client:  client,
		cfg:     cfg,
		maxIdle: maxIdle,
	}
}

// Acquire returns an idle workspace or creates a fresh one.
func (p *Pool) Acquire(ctx context.Context) (*workspace.Sandbox, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		sb := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return sb, nil
	}
	p.mu.Unlock()

	return p.client.Create(ctx, workspace.CreateParams{
		Language: "python",
		Target:   p.cfg.Target,
	})
}

// Release returns a workspace to the pool, or removes it when the pool
// is full.
func (p *Pool) Release(ctx context.Context, sb *workspace.Sandbox) {
	if sb == nil {
		return
	}
	p.mu.Lock()
	if len(p.idle) < p.maxIdle {
		p.idle = append(p.idle, sb)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	// Best effort; a leaked workspace expires provider-side.
	_ = p.client.Remove(ctx, sb)
}

// Discard removes a workspace without returning it to the pool. Used
// when a run left the workspace in an unknown state.
func (p *Pool) Discard(ctx context.Context, sb *workspace.Sandbox) {
	if sb == nil {
		return
	}
	_ = p.client.Remove(ctx, sb)
}

// CloseAll removes every idle workspace.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, sb := range idle {
		_ = p.client.Remove(ctx, sb)
	}
}

// IdleCount reports how many workspaces are waiting for reuse.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}
