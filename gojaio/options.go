package gojaio

import (
	"errors"

	"github.com/joeycumines/go-iocontext/handoff"
	"github.com/joeycumines/logiface"
)

// moduleOptions holds configuration for a [Module] instance.
type moduleOptions struct {
	handoff *handoff.Handoff
	loop    *handoff.Loop
	logger  *logiface.Logger[logiface.Event]
}

// Option configures a [Module] instance. Options are applied during
// module construction.
type Option interface {
	applyOption(*moduleOptions) error
}

// optionFunc implements [Option] via a closure.
type optionFunc struct {
	fn func(*moduleOptions) error
}

func (o *optionFunc) applyOption(opts *moduleOptions) error {
	return o.fn(opts)
}

// WithHandoff configures the [handoff.Handoff] that delivers completions
// to the goroutine owning the runtime. One of WithHandoff or [WithLoop] is
// required.
func WithHandoff(h *handoff.Handoff) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		if h == nil {
			return errors.New("gojaio: handoff must not be nil")
		}
		opts.handoff = h
		return nil
	}}
}

// WithLoop configures the [handoff.Loop] owning the runtime, creating a
// [handoff.Handoff] for it unless one is provided by [WithHandoff].
func WithLoop(loop *handoff.Loop) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		if loop == nil {
			return errors.New("gojaio: loop must not be nil")
		}
		opts.loop = loop
		return nil
	}}
}

// WithLogger configures structured logging, used for callbacks that throw,
// and passed on to every IoContext created from JavaScript.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveOptions applies the given options to a default [moduleOptions]
// and validates that all required fields are set.
func resolveOptions(opts []Option) (*moduleOptions, error) {
	cfg := &moduleOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.handoff == nil {
		if cfg.loop == nil {
			return nil, errors.New("gojaio: handoff is required (use WithHandoff or WithLoop)")
		}
		h, err := handoff.New(cfg.loop, handoff.WithLogger(cfg.logger))
		if err != nil {
			return nil, err
		}
		cfg.handoff = h
	}
	return cfg, nil
}
