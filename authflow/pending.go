package authflow

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"time"
)

// PendingAuthFlow is the state of one login attempt that is waiting for its callback.
type PendingAuthFlow struct {
	State       string
	RedirectURI string
	Deadline    time.Time
	Scopes      []string
}

// pendingFlows is a thread-safe in-memory registry of in-flight flows keyed by state
type pendingFlows struct {
	mu    sync.RWMutex
	flows map[string]PendingAuthFlow
}

func newPendingFlows() *pendingFlows {
	return &pendingFlows{
		flows: make(map[string]PendingAuthFlow),
	}
}

func (p *pendingFlows) add(flow PendingAuthFlow) error {
	if flow.State == "" {
		return errors.New("state cannot be empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.flows[flow.State]; exists {
		return errors.New("state already in use")
	}
	flow.Scopes = slices.Clone(flow.Scopes)
	p.flows[flow.State] = flow
	return nil
}

func (p *pendingFlows) remove(state string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.flows, state)
}

// list returns copies ordered by deadline
func (p *pendingFlows) list() []PendingAuthFlow {
	p.mu.RLock()
	defer p.mu.RUnlock()

	flows := make([]PendingAuthFlow, 0, len(p.flows))
	for _, f := range p.flows {
		f.Scopes = slices.Clone(f.Scopes)
		flows = append(flows, f)
	}
	sort.Slice(flows, func(i, j int) bool {
		return flows[i].Deadline.Before(flows[j].Deadline)
	})
	return flows
}
