package psoarchive

import (
	"runtime"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/psoarchive/bytecode"
	"github.com/gogpu/psoarchive/layout"
	"github.com/gogpu/psoarchive/remap"
	"github.com/gogpu/psoarchive/shader"
)

// Option configures an Archiver during creation.
//
// Example:
//
//	// Vulkan only, stripped SPIR-V, shared store
//	a := psoarchive.New(
//	    psoarchive.WithBackends(gputypes.BackendVulkan),
//	    psoarchive.WithStripReflection(true),
//	    psoarchive.WithStore(store),
//	)
type Option func(*options)

// options holds optional configuration for Archiver creation.
type options struct {
	backends []gputypes.Backend
	rules    layout.RuleTable
	registry *remap.Registry
	store    *bytecode.Store
	strip    bool
	workers  int
}

// defaultOptions returns the default archiver options.
func defaultOptions() options {
	return options{
		backends: slices.Clone(shader.DefaultBackends),
		rules:    layout.DefaultRules(),
		registry: nil, // remap.DefaultRegistry() if nil
		store:    nil, // bytecode.NewStore(nil) if nil
		workers:  runtime.GOMAXPROCS(0),
	}
}

// WithBackends sets the backends every pipeline is archived for.
// The default is shader.DefaultBackends.
func WithBackends(backends ...gputypes.Backend) Option {
	return func(o *options) {
		o.backends = slices.Clone(backends)
	}
}

// WithRules sets the layout rule table. Every archived backend needs an
// entry. The default is layout.DefaultRules().
func WithRules(rules layout.RuleTable) Option {
	return func(o *options) {
		o.rules = rules
	}
}

// WithRegistry sets the remapper registry.
// Use this to plug in remappers for additional bytecode formats.
func WithRegistry(reg *remap.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WithStore sets the bytecode store. Archivers sharing a store share its
// deduplication.
func WithStore(s *bytecode.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithStripReflection removes debug names and source information from the
// archived bytecode.
func WithStripReflection(strip bool) Option {
	return func(o *options) {
		o.strip = strip
	}
}

// WithWorkers sets the number of remap workers. Values below 2 remap
// sequentially.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}
