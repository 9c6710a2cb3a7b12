package engine

import (
	"github.com/nmxmxh/rete_v1/engine/network"
	"github.com/nmxmxh/rete_v1/utils"
)

// Options configures an environment at creation
type Options struct {
	Strategy        network.Strategy
	BetaResizing    bool
	DynamicSalience bool
	Logger          *utils.Logger

	// FireAction evaluates a firing rule's actions; the RHS
	// interpreter is an external collaborator.
	FireAction func(*Env, *network.Activation) error
}

// Option mutates the option set
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Strategy:        network.StrategyDepth,
		BetaResizing:    true,
		DynamicSalience: true,
	}
}

// WithStrategy selects the conflict-resolution strategy
func WithStrategy(s network.Strategy) Option {
	return func(o *Options) { o.Strategy = s }
}

// WithBetaResizing toggles beta-memory growth
func WithBetaResizing(enabled bool) Option {
	return func(o *Options) { o.BetaResizing = enabled }
}

// WithDynamicSalience toggles per-activation salience evaluation
func WithDynamicSalience(enabled bool) Option {
	return func(o *Options) { o.DynamicSalience = enabled }
}

// WithLogger installs a custom logger
func WithLogger(l *utils.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithFireAction installs the external action interpreter
func WithFireAction(fn func(*Env, *network.Activation) error) Option {
	return func(o *Options) { o.FireAction = fn }
}
