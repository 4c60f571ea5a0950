// Package health serves liveness and readiness probes for the maintenance
// daemon.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// State constants for the readiness state machine.
const (
	stateStarting int32 = iota
	stateReady
	stateDraining
)

// defaultProbeTimeout bounds all dependency probes of one readiness request.
const defaultProbeTimeout = 2 * time.Second

// Probe checks one dependency, such as the version database.
type Probe func(ctx context.Context) error

// Checker tracks the daemon state and its dependency probes.
// It is safe for concurrent use.
type Checker struct {
	state   atomic.Int32
	mu      sync.RWMutex
	probes  map[string]Probe
	timeout time.Duration
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{probes: make(map[string]Probe), timeout: defaultProbeTimeout}
}

// AddProbe registers a dependency that must be healthy for readiness.
func (c *Checker) AddProbe(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// SetReady transitions to the Ready state.
func (c *Checker) SetReady() {
	c.state.Store(stateReady)
}

// SetDraining transitions to the Draining state.
func (c *Checker) SetDraining() {
	c.state.Store(stateDraining)
}

// IsReady returns true when the state is Ready.
func (c *Checker) IsReady() bool {
	return c.state.Load() == stateReady
}

// State returns the current state as a human-readable string.
func (c *Checker) State() string {
	switch c.state.Load() {
	case stateReady:
		return "ready"
	case stateDraining:
		return "draining"
	default:
		return "starting"
	}
}

// Failing runs all probes and returns the names of those that failed, sorted.
func (c *Checker) Failing(ctx context.Context) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var failed []string
	for name, p := range c.probes {
		if err := p(ctx); err != nil {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// healthResponse is the JSON body returned by health endpoints.
type healthResponse struct {
	Status  string   `json:"status"`
	Failing []string `json:"failing,omitempty"`
}

// LivenessHandler always responds 200 OK.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	}
}

// ReadinessHandler responds 200 when the daemon is ready and every probe
// passes, and 503 otherwise.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: c.State()})
			return
		}
		if failed := c.Failing(r.Context()); len(failed) > 0 {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Failing: failed})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: c.State()})
	}
}

func writeJSON(w http.ResponseWriter, code int, v healthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
