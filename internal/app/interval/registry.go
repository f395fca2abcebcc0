// Package interval keeps named periodic timers, at most one per name.
package interval

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type entry struct {
	stop chan struct{}
}

func (e *entry) run(fn func(), period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-t.C:
			select {
			case <-e.stop:
				return
			default:
			}
			fn()
		}
	}
}

type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Add starts calling fn every period under name. If name is already running
// the call is a no-op and Add returns false; Del must come first.
func (r *Registry) Add(name string, fn func(), period time.Duration) bool {
	if period <= 0 {
		log.Warn().Str("module", "app.interval").Str("name", name).Dur("period", period).Msg("refusing non-positive period")
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; ok {
		log.Debug().Str("module", "app.interval").Str("name", name).Msg("interval already running")
		return false
	}
	e := &entry{stop: make(chan struct{})}
	r.entries[name] = e
	go e.run(fn, period)
	log.Debug().Str("module", "app.interval").Str("name", name).Dur("period", period).Msg("interval added")
	return true
}

// Del stops and forgets the named interval. Missing names are ignored.
// It may be called from inside the interval's own callback.
func (r *Registry) Del(name string) bool {
	r.mu.Lock()
	e, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()
	if !ok {
		return false
	}
	close(e.stop)
	log.Debug().Str("module", "app.interval").Str("name", name).Msg("interval removed")
	return true
}

func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear stops every interval.
func (r *Registry) Clear() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range entries {
		close(e.stop)
	}
}
