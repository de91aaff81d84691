// Package gitstamp resolves last-modified timestamps from version control
// history.
package gitstamp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// CommandExecutor abstracts command execution for testing.
type CommandExecutor interface {
	// Run executes a command and returns its standard output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its standard output. Standard error is
// folded into the returned error.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

// Lookup resolves the last-modified time of a path. ok is false when the
// path has no history.
type Lookup interface {
	LastModified(ctx context.Context, path string) (t time.Time, ok bool, err error)
}

// Resolver queries git for the committer date of the last commit touching a
// path.
type Resolver struct {
	executor CommandExecutor
	root     string
	timeout  time.Duration
}

// NewResolver creates a Resolver running git in root. A zero timeout means
// no per-query deadline.
func NewResolver(root string, timeout time.Duration) *Resolver {
	return NewResolverWithExecutor(root, timeout, &DefaultExecutor{})
}

// NewResolverWithExecutor creates a Resolver with a custom executor (for testing).
func NewResolverWithExecutor(root string, timeout time.Duration, executor CommandExecutor) *Resolver {
	return &Resolver{executor: executor, root: root, timeout: timeout}
}

// LastModified implements Lookup.
func (r *Resolver) LastModified(ctx context.Context, path string) (time.Time, bool, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	out, err := r.executor.Run(ctx, r.root, "git", "log", "-1", "--format=%cI", "--", path)
	if err != nil {
		if strings.Contains(err.Error(), "not a git repository") {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("git log %s: %w", path, err)
	}
	stamp := strings.TrimSpace(string(out))
	if stamp == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("git log %s: parse %q: %w", path, stamp, err)
	}
	return t.UTC(), true, nil
}

type entry struct {
	t   time.Time
	ok  bool
	err error
}

// Cache memoises a Lookup for one build generation. Concurrent requests for
// the same path share a single query.
type Cache struct {
	lookup Lookup
	group  singleflight.Group

	mu      sync.RWMutex
	entries map[string]entry
}

// NewCache wraps lookup with a fresh, empty memo.
func NewCache(lookup Lookup) *Cache {
	return &Cache{lookup: lookup, entries: make(map[string]entry)}
}

// LastModified implements Lookup.
func (c *Cache) LastModified(ctx context.Context, path string) (time.Time, bool, error) {
	if e, hit := c.get(path); hit {
		return e.t, e.ok, e.err
	}
	v, err, _ := c.group.Do(path, func() (any, error) {
		if e, hit := c.get(path); hit {
			return e, nil
		}
		t, ok, err := c.lookup.LastModified(ctx, path)
		e := entry{t: t, ok: ok, err: err}
		// Cancelled queries are retried by the next generation's caller.
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return e, nil
		}
		c.mu.Lock()
		c.entries[path] = e
		c.mu.Unlock()
		return e, nil
	})
	if err != nil {
		return time.Time{}, false, err
	}
	e := v.(entry)
	return e.t, e.ok, e.err
}

// Len returns the number of memoised paths.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(path string) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	return e, ok
}
