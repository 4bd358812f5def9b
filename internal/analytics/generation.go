package analytics

import "sync"

// Generations orders asynchronous refreshes per key. Each refresh takes a
// generation from Next before it starts and asks Accept before publishing its
// result; a result older than one already published is dropped, so a slow
// stale fetch can never overwrite a fresher one.
type Generations struct {
	mu       sync.Mutex
	issued   map[string]uint64
	accepted map[string]uint64
}

func NewGenerations() *Generations {
	return &Generations{
		issued:   make(map[string]uint64),
		accepted: make(map[string]uint64),
	}
}

// Next issues the next generation for key.
func (g *Generations) Next(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued[key]++
	return g.issued[key]
}

// Accept records gen as published for key if it is newer than anything
// published before, and reports whether the caller may publish.
func (g *Generations) Accept(key string, gen uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if gen <= g.accepted[key] {
		return false
	}
	g.accepted[key] = gen
	return true
}

// Latest reports the newest generation issued for key.
func (g *Generations) Latest(key string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.issued[key]
}
