package bot

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Registry is the process-wide bot map. It is the only mutable state shared
// across bots; inserts and removes are atomic. Construct one at process
// start and pass it to every bot and to the command handler.
type Registry struct {
	mu     sync.RWMutex
	bots   map[string]*Bot
	logger *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		bots:   make(map[string]*Bot),
		logger: logger.WithPrefix("registry"),
	}
}

// InsertIfAbsent registers a bot under its name. Returns false when the name
// is already taken; in that case the registry is unchanged.
func (r *Registry) InsertIfAbsent(name string, b *Bot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bots[name]; exists {
		return false
	}
	r.bots[name] = b
	r.logger.Info("bot registered", "bot", name, "total", len(r.bots))
	return true
}

// Remove deregisters a bot by name. Safe when the name is absent.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bots[name]; !exists {
		return
	}
	delete(r.bots, name)
	r.logger.Info("bot removed", "bot", name, "total", len(r.bots))
}

// Get returns the bot registered under name, or nil.
func (r *Registry) Get(name string) *Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bots[name]
}

// Count returns the number of registered bots.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bots)
}

// Snapshot returns the current bots sorted by name. Concurrent inserts may
// be missed, which is fine for iteration.
func (r *Registry) Snapshot() []*Bot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Bot, 0, len(r.bots))
	for _, b := range r.bots {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ShutdownAll shuts every registered bot down concurrently and waits for
// all of them.
func (r *Registry) ShutdownAll() {
	bots := r.Snapshot()
	r.logger.Info("shutting down all bots", "count", len(bots))

	var g errgroup.Group
	for _, b := range bots {
		g.Go(func() error {
			b.Shutdown()
			return nil
		})
	}
	_ = g.Wait()
}
