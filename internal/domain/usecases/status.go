// Package usecases - status.go tracks backend reachability and the indexed document list.
package usecases

import (
	"context"
	"log/slog"
	"sync"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

// ConnectionProbe holds the tri-state health of the backend.
// It starts Unknown and is refreshed once per page load.
type ConnectionProbe struct {
	backend ports.Backend

	mu    sync.Mutex
	state entities.ConnectionState
}

// NewConnectionProbe creates a probe in the Unknown state.
func NewConnectionProbe(backend ports.Backend) *ConnectionProbe {
	return &ConnectionProbe{backend: backend}
}

// Refresh checks health and records the result.
func (p *ConnectionProbe) Refresh(ctx context.Context) entities.ConnectionState {
	state := entities.ConnectionDown
	if p.backend.CheckHealth(ctx) {
		state = entities.ConnectionUp
	}
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	return state
}

// State returns the last recorded state.
func (p *ConnectionProbe) State() entities.ConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// DocumentLibrary is the informational list of indexed documents.
// Failures never reach the caller; they are logged and the old list is kept.
type DocumentLibrary struct {
	backend ports.Backend
	logger  *slog.Logger

	mu    sync.Mutex
	names []string
}

// NewDocumentLibrary creates an empty library.
func NewDocumentLibrary(backend ports.Backend, logger *slog.Logger) *DocumentLibrary {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentLibrary{backend: backend, logger: logger}
}

// Refresh fetches the list and returns the names now held.
func (l *DocumentLibrary) Refresh(ctx context.Context) []string {
	names, err := l.backend.ListUploadedDocuments(ctx)
	if err != nil {
		l.logger.Warn("failed to fetch uploaded documents", "error", err)
		return l.Names()
	}
	l.mu.Lock()
	l.names = append([]string(nil), names...)
	l.mu.Unlock()
	return l.Names()
}

// Names returns a copy of the current list.
func (l *DocumentLibrary) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.names...)
}
