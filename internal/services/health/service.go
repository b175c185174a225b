package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

const probeTimeout = 2 * time.Second

// Probe reports whether one dependency is reachable.
type Probe func(ctx context.Context) error

// Service runs the registered readiness probes.
type Service struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{probes: map[string]Probe{}}
}

// Register adds a named probe.
func (s *Service) Register(name string, p Probe) {
	s.mu.Lock()
	s.probes[name] = p
	s.mu.Unlock()
}

// Status runs every probe and returns ok plus a per-probe error map.
func (s *Service) Status(ctx context.Context) (bool, map[string]string) {
	s.mu.RLock()
	names := make([]string, 0, len(s.probes))
	for name := range s.probes {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		s.mu.RLock()
		probe := s.probes[name]
		s.mu.RUnlock()

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := probe(probeCtx)
		cancel()
		if err != nil {
			ok = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	return ok, checks
}
