package sources

import (
	"sync"

	"crosslight/pkg/logger"
)

// Registry holds the registered connectors for a pipeline instance.
type Registry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
	logger     *logger.Logger
}

// NewRegistry creates an empty connector registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		connectors: make(map[string]Connector),
		logger:     log.WithComponent("source-registry"),
	}
}

// Register adds a connector, replacing any prior connector with the same slug.
func (r *Registry) Register(conn Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[conn.Slug()] = conn
	r.logger.Info().Str("source", conn.Slug()).Msg("registered source connector")
}

// Get returns a connector by slug.
func (r *Registry) Get(slug string) (Connector, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connectors[slug]
	return conn, ok
}

// Enabled returns all enabled connectors.
func (r *Registry) Enabled() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Connector
	for _, conn := range r.connectors {
		if conn.IsEnabled() {
			out = append(out, conn)
		}
	}
	return out
}

// All returns every registered connector, enabled or not.
func (r *Registry) All() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Connector, 0, len(r.connectors))
	for _, conn := range r.connectors {
		out = append(out, conn)
	}
	return out
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connectors)
}
