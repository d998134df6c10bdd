package core

import (
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// Stressor registration contract
// =============================================================================

// RunFunc is the entry point of a stressor. It drives the bogo-op loop on the
// given WorkerContext until KeepStressing reports false, and resolves its own
// errors down to a single return value:
//
//   - nil: worker finished normally
//   - ErrNoResource (possibly wrapped): bounded-resource exhaustion, the
//     instance is skipped rather than failed
//   - anything else: worker failure
type RunFunc func(wc *WorkerContext) error

// Class tags a stressor with the OS subsystems it exercises. Tags are used
// for workload selection only; the harness never interprets them.
type Class uint32

const (
	ClassCPU Class = 1 << iota
	ClassCPUCache
	ClassMemory
	ClassVM
	ClassScheduler
	ClassInterrupt
	ClassOS
)

var classNames = []struct {
	class Class
	name  string
}{
	{ClassCPU, "cpu"},
	{ClassCPUCache, "cpu-cache"},
	{ClassMemory, "memory"},
	{ClassVM, "vm"},
	{ClassScheduler, "scheduler"},
	{ClassInterrupt, "interrupt"},
	{ClassOS, "os"},
}

// Has reports whether all bits of other are set in c.
func (c Class) Has(other Class) bool {
	return c&other == other
}

func (c Class) String() string {
	var parts []string
	for _, cn := range classNames {
		if c.Has(cn.class) {
			parts = append(parts, cn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// VerifyMode declares a stressor's relationship with the verification layer.
type VerifyMode int

const (
	// VerifyDisabled: the stressor has no verification step.
	VerifyDisabled VerifyMode = iota

	// VerifyOptional: verification runs when the user asks for it.
	VerifyOptional

	// VerifyMandatory: verification always runs.
	VerifyMandatory
)

// HelpEntry is one row of a stressor's help table.
type HelpEntry struct {
	Flag        string
	ArgHint     string
	Description string
}

// Info describes one pluggable stressor.
type Info struct {
	Name   string
	Run    RunFunc
	Class  Class
	Verify VerifyMode
	Help   []HelpEntry

	// Hidden stressors can be looked up and spawned but are excluded from
	// Names. Used for internal child entry points (e.g. the exit-group pool).
	Hidden bool
}

// =============================================================================
// Registry
// =============================================================================

// Registry maps stressor names to their Info. Registration happens once at
// startup; lookups may come from any goroutine.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Info
	order  []string
}

// NewRegistry creates an empty stressor registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Info)}
}

// Register adds a stressor. Duplicate or unnamed registrations are rejected.
func (r *Registry) Register(info *Info) error {
	if info == nil || info.Name == "" {
		return fmt.Errorf("stressor registration requires a name")
	}
	if info.Run == nil {
		return fmt.Errorf("stressor %s has no run function", info.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[info.Name]; exists {
		return fmt.Errorf("stressor %s already registered", info.Name)
	}
	r.byName[info.Name] = info
	r.order = append(r.order, info.Name)
	return nil
}

// Lookup returns the Info for a stressor name.
func (r *Registry) Lookup(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.byName[name]
	return info, ok
}

// Names returns visible stressor names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if info := r.byName[name]; info != nil && !info.Hidden {
			names = append(names, name)
		}
	}
	return names
}

// =============================================================================
// Default registry helpers
// =============================================================================

var (
	defaultRegistry   *Registry
	defaultRegistryMu sync.Mutex
)

// DefaultRegistry returns the process-wide registry, creating it on first use.
func DefaultRegistry() *Registry {
	defaultRegistryMu.Lock()
	defer defaultRegistryMu.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = NewRegistry()
	}
	return defaultRegistry
}

// Register adds a stressor to the default registry.
func Register(info *Info) error {
	return DefaultRegistry().Register(info)
}

// Lookup finds a stressor in the default registry.
func Lookup(name string) (*Info, bool) {
	return DefaultRegistry().Lookup(name)
}
