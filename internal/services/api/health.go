package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Checks are the named readiness probes, e.g. the store ping and the broker
// connection.
type Checks map[string]func(ctx context.Context) error

// Run executes every probe concurrently and returns the failures by name.
func (c Checks) Run(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed = map[string]error{}
	)
	for name, check := range c {
		wg.Add(1)
		go func(name string, check func(context.Context) error) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				mu.Lock()
				failed[name] = err
				mu.Unlock()
			}
		}(name, check)
	}
	wg.Wait()
	return failed
}

func (c Checks) names() []string {
	out := make([]string, 0, len(c))
	for n := range c {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	failed := s.checks.Run(r.Context())

	checks := make(map[string]string, len(s.checks))
	for _, name := range s.checks.names() {
		if err, ok := failed[name]; ok {
			checks[name] = err.Error()
		} else {
			checks[name] = "ok"
		}
	}

	status := http.StatusOK
	if len(failed) > 0 {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{"ready": len(failed) == 0, "checks": checks})
}
