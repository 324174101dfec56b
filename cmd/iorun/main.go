// Command iorun runs a JavaScript file with the iocontext module available,
// on a host loop served by a pool of reactor runners.
//
// The script may require('iocontext'), and is given a global ioContext,
// shared by the runners. If the script's completion value is a Promise,
// iorun waits for it to settle, failing if it rejects.
//
//	iorun --runners 4 --timeout 10s script.js
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	iocontext "github.com/joeycumines/go-iocontext"
	"github.com/joeycumines/go-iocontext/handoff"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds teardown once the script has finished.
const shutdownTimeout = 5 * time.Second

// startRunner is replaced in tests.
var startRunner = (*iocontext.IoContext).StartRunner

type options struct {
	logLevel string
	timeout  time.Duration
	runners  int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "iorun [flags] <script.js>",
		Short:         "Run a JavaScript file against an iocontext",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, args[0], cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.logLevel, "log-level", logiface.LevelWarning.String(), "minimum log level (err|warning|notice|info|debug|trace|disabled)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "fail if the script has not settled within this duration (0 disables)")
	cmd.Flags().IntVar(&opts.runners, "runners", 1, "number of runners serving the shared ioContext")

	return cmd
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf("iorun: invalid log level %q", s)
}

func run(ctx context.Context, opts *options, path string, stdout, stderr io.Writer) error {
	level, err := parseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	if opts.runners < 0 {
		return errors.New("iorun: runners must not be negative")
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("iorun: %w", err)
	}

	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(stderr)),
		stumpy.L.WithLevel(level),
	).Logger()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	loop, err := handoff.NewLoop(handoff.WithLogger(logger))
	if err != nil {
		return err
	}
	h, err := handoff.New(loop, handoff.WithLogger(logger))
	if err != nil {
		return err
	}

	ioc, err := iocontext.New(
		iocontext.WithLogger(logger),
		iocontext.WithConcurrencyHint(max(opts.runners, 1)),
	)
	if err != nil {
		return err
	}
	guard := ioc.NewWorkGuard()

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.Go(func() error {
		return loop.Run(gctx)
	})
	result := startRunners(ioc, g, opts.runners)
	if result == nil {
		result = evaluateAndWait(ctx, logger, h, loop, ioc, path, string(source), stdout, stderr)
	}

	guard.Reset()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ioc.Shutdown(shutdownCtx); err != nil {
		logger.Warning().Err(err).Log("iorun: context shutdown failed")
	}
	if err := loop.Shutdown(shutdownCtx); err != nil {
		logger.Warning().Err(err).Log("iorun: loop shutdown failed")
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Join(result, err)
	}
	return result
}

// startRunners starts n detached runners, each tracked by g.
func startRunners(ioc *iocontext.IoContext, g *errgroup.Group, n int) error {
	for i := 0; i < n; i++ {
		r, err := startRunner(ioc, iocontext.WithRunnerName(fmt.Sprintf("iorun-%d", i)))
		if err != nil {
			return err
		}
		g.Go(func() error {
			<-r.Done()
			return r.Err()
		})
		_ = r.Detach()
	}
	return nil
}

// evaluateAndWait runs the script on the loop, and waits for it to settle.
func evaluateAndWait(
	ctx context.Context,
	logger *logiface.Logger[logiface.Event],
	h *handoff.Handoff,
	loop *handoff.Loop,
	ioc *iocontext.IoContext,
	path, source string,
	stdout, stderr io.Writer,
) error {
	settled := make(chan error, 1)
	if err := loop.Submit(func() {
		evaluate(logger, h, ioc, path, source, stdout, stderr, func(err error) {
			select {
			case settled <- err:
			default:
			}
		})
	}); err != nil {
		return err
	}

	select {
	case err := <-settled:
		return err
	case <-ctx.Done():
		return fmt.Errorf("iorun: script did not settle: %w", ctx.Err())
	}
}
