package handoff_test

import (
	"context"
	"fmt"
	"time"

	iocontext "github.com/joeycumines/go-iocontext"
	"github.com/joeycumines/go-iocontext/handoff"
)

// Example_gather starts several timers on a reactor, and collects their
// results on a host loop.
func Example_gather() {
	loop, err := handoff.NewLoop()
	if err != nil {
		panic(err)
	}
	go func() { _ = loop.Run(context.Background()) }()
	defer loop.Shutdown(context.Background())

	h, err := handoff.New(loop)
	if err != nil {
		panic(err)
	}

	ioc, err := iocontext.New()
	if err != nil {
		panic(err)
	}
	guard := ioc.NewWorkGuard()
	runner, err := ioc.StartRunner()
	if err != nil {
		panic(err)
	}

	delays := []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	results := make([]string, len(delays))
	futures := make([]*handoff.Future[iocontext.ErrorCode], len(delays))
	for i, d := range delays {
		timer := iocontext.NewTimer(ioc, d)
		futures[i] = handoff.CallAsync(h, func(done func(iocontext.ErrorCode)) {
			_ = timer.AsyncWait(done)
		})
		futures[i].Then(func(ec iocontext.ErrorCode, err error) {
			// runs on the loop, so no locking is needed
			results[i] = fmt.Sprintf("timer %d: %s", i, ec.Message())
		})
	}

	for _, f := range futures {
		if _, err := f.Await(context.Background()); err != nil {
			panic(err)
		}
	}

	guard.Reset()
	_ = runner.Join()

	// read results on the loop, after every continuation
	printed := make(chan struct{})
	_ = loop.Submit(func() {
		defer close(printed)
		for _, s := range results {
			fmt.Println(s)
		}
	})
	<-printed

	//output:
	// timer 0: Success
	// timer 1: Success
	// timer 2: Success
}
