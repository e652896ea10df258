package nbuild

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// InterruptibleContext returns a context which is canceled when the program is
// interrupted (i.e. receiving SIGINT or SIGTERM).
func InterruptibleContext() (context.Context, context.CancelFunc) {
	ctx, canc := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		// Subsequent signals will result in immediate termination, which is
		// useful in case cleanup hangs:
		signal.Stop(sig)
		canc()
	}()
	return ctx, canc
}

// AbortFlag is the single process-wide "stop building" switch the scheduler
// consults at build-pass boundaries. It is intentionally not a Context: a
// build pass in progress runs to the next node boundary before observing it,
// rather than having every blocking call wired to ctx.Done(), matching how
// the original scheduler checks a plain boolean between recursion steps
// rather than threading cancellation through every node visit.
type AbortFlag struct {
	v uint32
}

// Set marks the flag aborted. Idempotent and safe to call from a signal
// handler or any worker goroutine.
func (a *AbortFlag) Set() { atomic.StoreUint32(&a.v, 1) }

// IsSet reports whether the flag has been set.
func (a *AbortFlag) IsSet() bool { return atomic.LoadUint32(&a.v) != 0 }

// WatchContext sets the flag as soon as ctx is done, so a scheduler that only
// polls AbortFlag still reacts to context cancellation (e.g. the errgroup
// context produced by a failing worker, or InterruptibleContext's SIGINT
// cancellation).
func (a *AbortFlag) WatchContext(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.Set()
	}()
}
