package task

import "sync"

// Base tracks one task's completion state and lets dependents register a
// callback instead of blocking a goroutine on it, matching the engine's
// single-threaded cooperative scheduling: everything here runs on the
// dispatching goroutine, never across one.
type Base struct {
	mu        sync.Mutex
	done      bool
	err       error
	onDone    []func(error)
	aborted   bool
}

// OnDone registers f to run once this task finishes, successfully or not.
// If the task has already finished, f runs immediately.
func (b *Base) OnDone(f func(error)) {
	b.mu.Lock()
	if b.done {
		err := b.err
		b.mu.Unlock()
		f(err)
		return
	}
	b.onDone = append(b.onDone, f)
	b.mu.Unlock()
}

func (b *Base) finish(err error) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		return
	}
	b.done = true
	b.err = err
	callbacks := b.onDone
	b.onDone = nil
	b.mu.Unlock()

	for _, f := range callbacks {
		f(err)
	}
}

func (b *Base) complete() { b.finish(nil) }
func (b *Base) fail(err error) { b.finish(err) }

// HandleConnLost satisfies router.LostNotifiable by duck typing: every
// concrete task embeds Base, so this one definition is what makes a task
// stuck on an outstanding tag or untagged registration fail with
// ConnectionLost instead of hanging forever once its connection dies.
// finish is idempotent, so a task that already completed (or that also
// registered its own OnLost, like CreateConnection during setup) is
// unaffected by a second call here.
func (b *Base) HandleConnLost(err error) {
	b.fail(newErr(ConnectionLost, "connection lost", err))
}

func (b *Base) Completed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done && b.err == nil
}

func (b *Base) Failed() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return b.err
	}
	return nil
}

// Abort marks the task aborted before Perform has run; per the engine's
// cancellation rule this is the fast path straight to failed. Once
// commands are in flight, callers must let the task run to completion
// instead of calling Abort.
func (b *Base) Abort() {
	b.mu.Lock()
	b.aborted = true
	b.mu.Unlock()
	b.fail(newErr(UnexpectedResponseReceived, "aborted before perform", nil))
}

func (b *Base) wasAborted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.aborted
}

// WaitAll arranges for ready to run once every dependency in deps has
// completed successfully, or for fail to run with the first failure seen.
// Neither callback blocks; both are invoked from whichever dependency's
// own completion callback happens to finish last.
func WaitAll(deps []*Base, ready func(), fail func(error)) {
	if len(deps) == 0 {
		ready()
		return
	}
	var mu sync.Mutex
	remaining := len(deps)
	var failed bool
	for _, d := range deps {
		d.OnDone(func(err error) {
			mu.Lock()
			defer mu.Unlock()
			if failed {
				return
			}
			if err != nil {
				failed = true
				fail(err)
				return
			}
			remaining--
			if remaining == 0 {
				ready()
			}
		})
	}
}
