package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually driven Clock. Timers only fire from Advance or Set, in
// deadline order, and their callbacks run outside the fake's lock so they may
// arm new timers.
type Fake struct {
	lock   sync.Mutex
	now    time.Time
	seq    int64
	timers []*fakeTimer
}

type fakeTimer struct {
	fake *Fake
	when time.Time
	seq  int64
	fn   func()
	done bool
}

func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.lock.Lock()
	defer f.lock.Unlock()

	if d < 0 {
		d = 0
	}
	f.seq++
	t := &fakeTimer{fake: f, when: f.now.Add(d), seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer due on the way.
func (f *Fake) Advance(d time.Duration) {
	f.Set(f.Now().Add(d))
}

// Set moves the clock to t (never backwards for timers already due).
func (f *Fake) Set(t time.Time) {
	for {
		f.lock.Lock()
		next := f.nextDue(t)
		if next == nil {
			if t.After(f.now) {
				f.now = t
			}
			f.lock.Unlock()
			return
		}
		if next.when.After(f.now) {
			f.now = next.when
		}
		next.done = true
		f.remove(next)
		f.lock.Unlock()

		next.fn()
	}
}

// Pending counts timers armed and not yet fired or stopped.
func (f *Fake) Pending() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.timers)
}

func (f *Fake) nextDue(limit time.Time) *fakeTimer {
	if len(f.timers) == 0 {
		return nil
	}
	sort.SliceStable(f.timers, func(i, j int) bool {
		if f.timers[i].when.Equal(f.timers[j].when) {
			return f.timers[i].seq < f.timers[j].seq
		}
		return f.timers[i].when.Before(f.timers[j].when)
	})
	if f.timers[0].when.After(limit) {
		return nil
	}
	return f.timers[0]
}

func (f *Fake) remove(t *fakeTimer) {
	for i, candidate := range f.timers {
		if candidate == t {
			f.timers = append(f.timers[:i], f.timers[i+1:]...)
			return
		}
	}
}

func (t *fakeTimer) Stop() bool {
	t.fake.lock.Lock()
	defer t.fake.lock.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.fake.remove(t)
	return true
}
