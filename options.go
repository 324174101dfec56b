package iocontext

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// contextOptions holds configuration options for IoContext creation.
type contextOptions struct {
	logger          *logiface.Logger[logiface.Event]
	panicLogRates   map[time.Duration]int
	concurrencyHint int
}

// --- IoContext Options ---

// Option configures an IoContext instance.
type Option interface {
	applyOption(*contextOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyOptionFunc func(*contextOptions) error
}

func (o *optionImpl) applyOption(opts *contextOptions) error {
	return o.applyOptionFunc(opts)
}

// WithConcurrencyHint records the number of runners the caller expects to
// drain the context concurrently. It is advisory, see
// [IoContext.ConcurrencyHint].
func WithConcurrencyHint(hint int) Option {
	return &optionImpl{func(opts *contextOptions) error {
		opts.concurrencyHint = hint
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging,
// which is also the default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *contextOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPanicLogRates configures the per-category rate limits applied to
// handler panic logs, keyed by window. A nil map disables limiting.
func WithPanicLogRates(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *contextOptions) error {
		for window, count := range rates {
			if window <= 0 || count <= 0 {
				return errors.New("iocontext: panic log rates must be positive")
			}
		}
		opts.panicLogRates = rates
		return nil
	}}
}

// resolveOptions applies Option instances to contextOptions.
func resolveOptions(opts []Option) (*contextOptions, error) {
	cfg := &contextOptions{
		concurrencyHint: 1,
		panicLogRates: map[time.Duration]int{
			time.Second: 5,
			time.Minute: 30,
		},
	}
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

// --- Runner Options ---

// runnerOptions holds configuration options for Runner creation.
type runnerOptions struct {
	name        string
	cpuAffinity []int
}

// RunnerOption configures a Runner started by [IoContext.StartRunner].
type RunnerOption interface {
	applyRunner(*runnerOptions) error
}

// runnerOptionImpl implements RunnerOption.
type runnerOptionImpl struct {
	applyRunnerFunc func(*runnerOptions) error
}

func (r *runnerOptionImpl) applyRunner(opts *runnerOptions) error {
	return r.applyRunnerFunc(opts)
}

// WithCPUAffinity pins the runner's OS thread to the given CPUs. It is
// supported on Linux only, and ignored elsewhere.
func WithCPUAffinity(cpus ...int) RunnerOption {
	return &runnerOptionImpl{func(opts *runnerOptions) error {
		for _, cpu := range cpus {
			if cpu < 0 {
				return errors.New("iocontext: cpu index must not be negative")
			}
		}
		opts.cpuAffinity = append([]int(nil), cpus...)
		return nil
	}}
}

// WithRunnerName sets a name used to identify the runner in logs.
func WithRunnerName(name string) RunnerOption {
	return &runnerOptionImpl{func(opts *runnerOptions) error {
		opts.name = name
		return nil
	}}
}

// resolveRunnerOptions applies RunnerOption instances to runnerOptions.
func resolveRunnerOptions(opts []RunnerOption) (*runnerOptions, error) {
	cfg := &runnerOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRunner(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
