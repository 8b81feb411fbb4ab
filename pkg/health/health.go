// Package health tracks the dependencies of the checkout service and serves
// liveness and readiness endpoints.
//
// Every check is polled in the background and flips state only after
// FailureThreshold consecutive failures or SuccessThreshold consecutive
// successes. Readiness distinguishes critical dependencies (the order and
// cart stores), whose failure takes the instance out of rotation, from
// optional ones (lock, event bus, payment provider breaker), whose failure
// only degrades the reported status.
package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Report statuses.
const (
	StatusOK        = "ok"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

const (
	defaultTimeout          = 2 * time.Second
	defaultFailureThreshold = 3
	defaultSuccessThreshold = 1
)

// Check describes a registered dependency check.
type Check struct {
	Name    string
	Kind    Kind
	Timeout time.Duration
	// Optional checks degrade the report instead of failing it.
	Optional         bool
	FailureThreshold int
	SuccessThreshold int
	Func             CheckFunc
}

// tracked is the runtime state of a Check. fails and oks are owned by the
// polling goroutine; up and lastErr are read by handlers.
type tracked struct {
	Check

	up      atomic.Bool
	lastErr atomic.Pointer[string]

	fails int
	oks   int
}

func (p *tracked) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if err := p.Func(ctx); err != nil {
		msg := err.Error()
		p.lastErr.Store(&msg)
		p.oks = 0
		if p.fails++; p.fails >= p.FailureThreshold {
			p.up.Store(false)
		}
		return
	}
	p.lastErr.Store(nil)
	p.fails = 0
	if p.oks++; p.oks >= p.SuccessThreshold {
		p.up.Store(true)
	}
}

// CheckStatus is the state of one check in a Report.
type CheckStatus struct {
	Name     string
	Up       bool
	Optional bool
	Error    string
}

// Report is a snapshot of one endpoint.
type Report struct {
	Status string
	// Ready is the manual readiness flag. Always true for liveness.
	Ready  bool
	Checks []CheckStatus
}

// Health holds the registered checks.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*tracked
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Register adds a check. Zero timeouts and thresholds take defaults. Checks
// are considered up until they fail.
func (h *Health) Register(c Check) {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = defaultFailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = defaultSuccessThreshold
	}
	p := &tracked{Check: c}
	p.up.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, p)
	h.mu.Unlock()
}

// Start polls every check at interval until Stop or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := h.checks
	h.mu.Unlock()

	for _, p := range checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			poll(ctx, p, interval)
		}()
	}
}

func poll(ctx context.Context, p *tracked, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		p.run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Stop cancels polling and waits for the pollers to exit. It is idempotent.
func (h *Health) Stop() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// SetReady sets the manual readiness flag, cleared during shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the instance should receive traffic.
func (h *Health) IsReady() bool {
	return h.Report(Readiness).Status != StatusUnhealthy
}

// Report returns the current state of the checks of kind.
func (h *Health) Report(kind Kind) Report {
	h.mu.RLock()
	checks := h.checks
	h.mu.RUnlock()

	r := Report{Status: StatusOK, Ready: kind == Liveness || h.ready.Load()}
	if !r.Ready {
		r.Status = StatusUnhealthy
	}
	for _, p := range checks {
		if p.Kind != kind {
			continue
		}
		cs := CheckStatus{Name: p.Name, Up: p.up.Load(), Optional: p.Optional}
		if msg := p.lastErr.Load(); msg != nil && !cs.Up {
			cs.Error = *msg
		}
		r.Checks = append(r.Checks, cs)

		switch {
		case cs.Up:
		case p.Optional:
			if r.Status == StatusOK {
				r.Status = StatusDegraded
			}
		default:
			r.Status = StatusUnhealthy
		}
	}
	return r
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.Report(Liveness), false)
}

// ReadyEndpoint serves /readyz. A degraded instance still answers 200.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, h.Report(Readiness), true)
}

func writeReport(w http.ResponseWriter, r Report, withReady bool) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	e.Str(r.Status)
	if withReady {
		e.FieldStart("ready")
		e.Bool(r.Ready)
	}
	if len(r.Checks) > 0 {
		e.FieldStart("checks")
		e.ObjStart()
		for _, c := range r.Checks {
			e.FieldStart(c.Name)
			e.ObjStart()
			e.FieldStart("status")
			if c.Up {
				e.Str("up")
			} else {
				e.Str("down")
			}
			if c.Optional {
				e.FieldStart("optional")
				e.Bool(true)
			}
			if c.Error != "" {
				e.FieldStart("error")
				e.Str(c.Error)
			}
			e.ObjEnd()
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	code := http.StatusOK
	if r.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
