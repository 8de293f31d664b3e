package stats

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// Profiler collects per-frame CPU scope timings and counters. It is shared
// between the frame loop and the telemetry/HUD readers, so every access is
// locked.
type Profiler struct {
	mu         sync.Mutex
	scopes     map[string]time.Duration
	startTimes map[string]time.Time
	counts     map[string]int
	order      []string
	now        func() time.Time
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes:     make(map[string]time.Duration),
		startTimes: make(map[string]time.Time),
		counts:     make(map[string]int),
		now:        time.Now,
	}
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startTimes[name] = p.now()
	if !slices.Contains(p.order, name) {
		p.order = append(p.order, name)
	}
}

func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if start, ok := p.startTimes[name]; ok {
		p.scopes[name] = p.now().Sub(start)
	}
}

// Scope begins name and returns the matching end call, for use with defer.
func (p *Profiler) Scope(name string) func() {
	p.BeginScope(name)
	return func() { p.EndScope(name) }
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
}

// Reset zeroes timings and keeps the scope order.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k := range p.scopes {
		p.scopes[k] = 0
	}
}

// Snapshot is a copy of the profiler state, safe to serialize.
type Snapshot struct {
	Frame   uint64             `json:"frame"`
	Timings map[string]float64 `json:"timings_ms"`
	Order   []string           `json:"order"`
	Counts  map[string]int     `json:"counts"`
}

func (p *Profiler) Snapshot(frame uint64) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Snapshot{
		Frame:   frame,
		Timings: make(map[string]float64, len(p.scopes)),
		Order:   slices.Clone(p.order),
		Counts:  maps.Clone(p.counts),
	}
	for k, d := range p.scopes {
		s.Timings[k] = float64(d.Microseconds()) / 1000.0
	}
	return s
}

func (s Snapshot) String() string {
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range s.Order {
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, s.Timings[name]))
	}

	sb.WriteString("\nStats:\n")
	for _, k := range slices.Sorted(maps.Keys(s.Counts)) {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, s.Counts[k]))
	}
	return sb.String()
}
