package handoff

import (
	"github.com/joeycumines/logiface"
)

// options holds configuration shared by Loop and Handoff creation.
type options struct {
	logger         *logiface.Logger[logiface.Event]
	unlockOSThread bool
}

// Option configures a [Loop] or a [Handoff].
type Option interface {
	applyOption(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyOptionFunc func(*options) error
}

func (o *optionImpl) applyOption(opts *options) error {
	return o.applyOptionFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *options) error {
		opts.logger = logger
		return nil
	}}
}

// WithLockOSThread sets whether [Loop.Run] locks the calling goroutine to
// its OS thread, for the duration of the run. Defaults to true.
func WithLockOSThread(enabled bool) Option {
	return &optionImpl{func(opts *options) error {
		opts.unlockOSThread = !enabled
		return nil
	}}
}

// resolveOptions applies Option instances to options.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
