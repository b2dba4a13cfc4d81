// Package debounce coalesces bursts of calls into one invocation.
package debounce

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Func wraps fn so that a burst of calls closer together than wait results in
// a single invocation.
//
// In leading mode the first call of a burst runs fn right away and every call
// until the quiet timer fires is dropped. Otherwise every call restarts the
// timer and fn runs once with the last argument when it fires.
type Func[T any] struct {
	fn      func(T)
	wait    time.Duration
	leading bool
	clock   clockwork.Clock

	mu      sync.Mutex
	timer   clockwork.Timer
	gen     uint64
	pending T
}

func New[T any](fn func(T), wait time.Duration, leading bool, clock clockwork.Clock) *Func[T] {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Func[T]{fn: fn, wait: wait, leading: leading, clock: clock}
}

func (d *Func[T]) Call(arg T) {
	d.call(nil, arg)
}

// call replaces fn when one is given, so the window always runs the callback
// of its most recent caller.
func (d *Func[T]) call(fn func(T), arg T) {
	d.mu.Lock()
	if fn != nil {
		d.fn = fn
	}
	if d.leading {
		if d.timer != nil {
			d.mu.Unlock()
			return
		}
		d.gen++
		gen := d.gen
		d.timer = d.clock.AfterFunc(d.wait, func() { d.expire(gen) })
		run := d.fn
		d.mu.Unlock()
		run(arg)
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = arg
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.wait, func() { d.fire(gen) })
	d.mu.Unlock()
}

// Pending reports whether a quiet window is open.
func (d *Func[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Cancel closes the window without invoking fn.
func (d *Func[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	var zero T
	d.pending = zero
}

func (d *Func[T]) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == gen {
		d.timer = nil
	}
}

// fire ignores timers that were replaced after they had already fired.
func (d *Func[T]) fire(gen uint64) {
	d.mu.Lock()
	if d.gen != gen {
		d.mu.Unlock()
		return
	}
	arg := d.pending
	var zero T
	d.pending = zero
	d.timer = nil
	run := d.fn
	d.mu.Unlock()
	run(arg)
}

// Group lazily creates one Func per key and keeps it for its own lifetime.
type Group[K comparable, T any] struct {
	wait    time.Duration
	leading bool
	clock   clockwork.Clock

	mu    sync.Mutex
	funcs map[K]*Func[T]
}

func NewGroup[K comparable, T any](wait time.Duration, leading bool, clock clockwork.Clock) *Group[K, T] {
	return &Group[K, T]{wait: wait, leading: leading, clock: clock, funcs: make(map[K]*Func[T])}
}

// Call routes arg to the key's Func. fn replaces the callback registered by
// earlier calls for the same key.
func (g *Group[K, T]) Call(key K, fn func(T), arg T) {
	g.get(key, fn).call(fn, arg)
}

func (g *Group[K, T]) get(key K, fn func(T)) *Func[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	f, ok := g.funcs[key]
	if !ok {
		f = New(fn, g.wait, g.leading, g.clock)
		g.funcs[key] = f
	}
	return f
}

// Stop cancels every open window.
func (g *Group[K, T]) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, f := range g.funcs {
		f.Cancel()
	}
}

// Forget cancels and drops every Func whose key matches.
func (g *Group[K, T]) Forget(match func(K) bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, f := range g.funcs {
		if match(k) {
			f.Cancel()
			delete(g.funcs, k)
		}
	}
}

func (g *Group[K, T]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.funcs)
}
