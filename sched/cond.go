// Package sched provides the wait/wake/interrupt primitive the tcp package
// uses to let a user-facing call block while holding the stack's global
// lock, and to be woken either by the ingress path or by an external
// cancellation event.
package sched

import "sync"

// Result is returned by Cond.Sleep to tell the caller why it woke up.
type Result uint8

const (
	// Woken means Sleep returned because Wake was called.
	Woken Result = iota
	// Interrupted means Sleep returned because Interrupt was called; the
	// caller must translate this into a user-visible INTERRUPTED error.
	Interrupted
)

// Cond is a condition-variable-style wait/wake/interrupt context scoped to
// a single PCB. The governing mutex is supplied once at construction, not
// per call, since every PCB in this stack shares the same stack-wide lock.
//
// The zero value is not ready to use; construct with New.
type Cond struct {
	c         *sync.Cond
	mu        *sync.Mutex
	interrupt bool
	waiting   int
}

// New returns a Cond governed by mu. mu must already be held by every
// caller of Sleep/Wake/Interrupt, matching the stack's single global lock
// discipline.
func New(mu *sync.Mutex) *Cond {
	return &Cond{c: sync.NewCond(mu), mu: mu}
}

// Sleep atomically releases the governing mutex, blocks the calling
// goroutine until either Wake or Interrupt is called on this Cond, and
// reacquires the mutex before returning. Wakeups are level-triggered:
// callers must recheck their condition after Sleep returns Woken, since an
// unrelated wakeup on the same PCB may have raced in.
//
// An Interrupted result consumes the interrupt: every Sleep call in
// progress when Interrupt is called returns Interrupted, and the last of
// them to observe the latch clears it, so a surviving PCB's next Sleep
// blocks normally instead of returning Interrupted forever.
func (c *Cond) Sleep() Result {
	c.waiting++
	defer func() { c.waiting-- }()
	for {
		if c.interrupt {
			if c.waiting == 1 {
				c.interrupt = false
			}
			return Interrupted
		}
		c.c.Wait()
		if c.interrupt {
			if c.waiting == 1 {
				c.interrupt = false
			}
			return Interrupted
		}
		return Woken
	}
}

// Wake broadcasts to every goroutine sleeping on c. Called by the ingress
// path whenever a PCB transitions to ESTABLISHED, receives new payload, or
// may have unblocked a stalled sender.
func (c *Cond) Wake() {
	c.c.Broadcast()
}

// Interrupt marks c as interrupted and wakes every sleeper; any Sleep call
// already in progress, or the next one to run, returns Interrupted, and the
// last of them clears the latch (see Sleep). This is the only cancellation path
// a blocking user call has (spec: no timeout on user calls by default).
func (c *Cond) Interrupt() {
	c.interrupt = true
	c.c.Broadcast()
}

// Reset clears a prior Interrupt without going through Sleep, re-arming c
// for reuse. Sleep already clears the latch itself once observed, so this
// is only needed to force c back to a clean state outside of a Sleep call.
// Nothing in this module calls it: allocate gives each PCB a fresh Cond.
func (c *Cond) Reset() {
	c.interrupt = false
}

// Destroy reports whether a goroutine is still sleeping on c. If so, the
// caller must Wake waiters and defer the actual release to whichever
// waiter observes the PCB has no more sleepers left, mirroring the
// reference implementation's "release deferred while a waiter remains"
// contract.
func (c *Cond) Destroy() (waiting bool) {
	return c.waiting > 0
}
