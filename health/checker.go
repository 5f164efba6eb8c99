package health

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Check probes one dependency.
type Check func(ctx context.Context) Status

// PingCheck adapts a ping function, such as (*sql.DB).PingContext.
func PingCheck(ping func(context.Context) error) Check {
	return func(ctx context.Context) Status {
		return FromError("", ping(ctx))
	}
}

// ConnectedCheck reports unhealthy while connected returns false.
func ConnectedCheck(connected func() bool) Check {
	return func(context.Context) Status {
		if connected() {
			return NewHealthy("", "Connected")
		}
		return NewUnhealthy("", "Not connected")
	}
}

// Checker runs a set of named checks.
type Checker struct {
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
	last   map[string]Status
}

// NewChecker creates a checker that gives each check at most timeout.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{
		timeout: timeout,
		checks:  make(map[string]Check),
		last:    make(map[string]Status),
	}
}

// Add registers or replaces a named check.
func (c *Checker) Add(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Remove drops a check and its last result.
func (c *Checker) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
	delete(c.last, name)
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes every check concurrently and aggregates the results under
// system. A check that overruns the timeout is reported unhealthy.
func (c *Checker) Run(ctx context.Context, system string) Status {
	names := c.Names()

	c.mu.RLock()
	checks := make([]Check, len(names))
	for i, name := range names {
		checks[i] = c.checks[name]
	}
	c.mu.RUnlock()

	results := make([]Status, len(names))
	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.runOne(ctx, names[i], checks[i])
		}(i)
	}
	wg.Wait()

	c.mu.Lock()
	for _, s := range results {
		c.last[s.Component] = s
	}
	c.mu.Unlock()

	return Aggregate(system, results)
}

func (c *Checker) runOne(ctx context.Context, name string, check Check) Status {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Status, 1)
	go func() { done <- check(ctx) }()

	var s Status
	select {
	case s = <-done:
	case <-ctx.Done():
		s = NewUnhealthy(name, "Check timed out")
	}
	s.Component = name
	s.Latency = time.Since(start)
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now()
	}
	return s
}

// Last returns the most recent result of a check.
func (c *Checker) Last(name string) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.last[name]
	return s, ok
}
