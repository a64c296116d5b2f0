// Package memory holds in-memory implementations of the engine repositories.
// They back the service tests.
package memory

import (
	"context"
	"sync"
)

// Ledger is an in-memory processed-event ledger.
type Ledger struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{seen: map[string]struct{}{}}
}

func (l *Ledger) IsProcessed(ctx context.Context, scope, sourceEventID string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[scope+"/"+sourceEventID]
	return ok, nil
}

func (l *Ledger) MarkProcessed(ctx context.Context, scope, sourceEventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[scope+"/"+sourceEventID] = struct{}{}
	return nil
}
