// Package sequencer turns a versioned playlist snapshot into a continuous,
// self-advancing presentation.
//
// A Sequencer shows one item at a time. Images advance on a one-shot timer,
// videos on a completion signal fired by the renderer. Every pending timer and
// signal listener is tagged with the generation current when it was armed; any
// transition bumps the generation first, so a callback belonging to a previous
// item (or a previous snapshot) is silently dropped.
package sequencer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/clock"
	"github.com/sirupsen/logrus"
)

const (
	DefaultFallbackDuration = 8 * time.Second
	DefaultRetryDelay       = 30 * time.Second
)

type Phase int

const (
	Idle Phase = iota
	Showing
)

func (p Phase) String() string {
	if p == Showing {
		return "showing"
	}
	return "idle"
}

// Signal is the external completion of a shown item. Both values normally
// advance to the next item. They differ in one case: SignalEnded resets the
// failure count, SignalError increments it, and once failures reach the number
// of items the sequencer goes idle and retries from the first item after the
// retry delay instead of advancing.
type Signal int

const (
	SignalEnded Signal = iota
	SignalError
)

// Renderer puts media on the projector.
//
// Show replaces whatever is currently shown, tearing it down first. done must
// be called at most once, and never before Show returns. When Show returns an
// error, done is never called.
type Renderer interface {
	Show(entry apimodel.PlaylistEntry, media apimodel.MediaItem, done func(Signal)) error
	Clear()
}

type Options struct {
	FallbackDuration time.Duration
	RetryDelay       time.Duration
}

type Status struct {
	Phase          Phase
	Index          int
	Version        apimodel.PlaylistVersion
	ItemCount      int
	Current        *apimodel.MediaItem
	TimerArmed     bool
	AwaitingSignal bool
}

type Sequencer struct {
	lock     sync.Mutex
	clock    clock.Clock
	renderer Renderer

	fallback   time.Duration
	retryDelay time.Duration

	snapshot   apimodel.Playlist
	index      int
	phase      Phase
	generation uint64
	timer      clock.Timer
	awaiting   bool
	failures   int
}

func New(clk clock.Clock, renderer Renderer, options Options) *Sequencer {
	if options.FallbackDuration <= 0 {
		options.FallbackDuration = DefaultFallbackDuration
	}
	if options.RetryDelay <= 0 {
		options.RetryDelay = DefaultRetryDelay
	}
	return &Sequencer{
		clock:      clk,
		renderer:   renderer,
		fallback:   options.FallbackDuration,
		retryDelay: options.RetryDelay,
		phase:      Idle,
	}
}

// Reconcile swaps the local snapshot and restarts at its first item.
func (s *Sequencer) Reconcile(playlist apimodel.Playlist) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.cancelPending()
	s.snapshot = playlist
	s.failures = 0
	logrus.Infof("Reconcile playlist version %d (%d items)", playlist.Version, len(playlist.Items))
	s.play(0)
}

// Play shows the item at index i, out of range indices wrap to the first item.
func (s *Sequencer) Play(i int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.failures = 0
	s.play(i)
}

// Next skips to the following item.
func (s *Sequencer) Next() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.snapshot.Items) == 0 {
		return
	}
	s.failures = 0
	s.play(s.index + 1)
}

func (s *Sequencer) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.cancelPending()
	s.goIdle()
}

func (s *Sequencer) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()

	status := Status{
		Phase:          s.phase,
		Index:          s.index,
		Version:        s.snapshot.Version,
		ItemCount:      len(s.snapshot.Items),
		TimerArmed:     s.timer != nil,
		AwaitingSignal: s.awaiting,
	}
	if s.phase == Showing && s.index < len(s.snapshot.Items) {
		if media := s.snapshot.Items[s.index].Media; media != nil {
			current := *media
			status.Current = &current
		}
	}
	return status
}

func (s *Sequencer) play(i int) {
	s.cancelPending()

	count := len(s.snapshot.Items)
	if count == 0 {
		logrus.Infof("No content to display")
		s.goIdle()
		return
	}

	for attempt := 0; attempt < count; attempt++ {
		if i < 0 || i >= count {
			i = 0
		}
		entry := s.snapshot.Items[i]
		if entry.Media == nil {
			logrus.Warnf("Playlist item %d references missing media %s, skipping", i, entry.MediaId)
			i++
			continue
		}

		s.generation++
		generation := s.generation
		s.index = i
		s.phase = Showing
		err := s.renderer.Show(entry, *entry.Media, func(signal Signal) {
			s.complete(generation, signal)
		})
		if err != nil {
			logrus.Warnf("Unable to show playlist item %d (%s): %v", i, entry.Media.Filename, err)
			i++
			continue
		}

		logrus.Debugf("Showing playlist item %d: %s", i, entry.Media.Filename)
		if entry.Media.IsVideo() {
			s.awaiting = true
		} else if duration, ok := EffectiveDuration(entry, *entry.Media, count, s.fallback); ok {
			s.timer = s.clock.AfterFunc(duration, func() { s.expire(generation) })
		}
		return
	}

	logrus.Warnf("Nothing displayable in playlist version %d, retry in %s", s.snapshot.Version, s.retryDelay)
	s.goIdle()
	s.armRetry()
}

func (s *Sequencer) complete(generation uint64, signal Signal) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if generation != s.generation || s.phase != Showing {
		logrus.Debugf("Ignore stale completion signal")
		return
	}
	s.awaiting = false

	if signal == SignalError {
		s.failures++
		logrus.Warnf("Playlist item %d failed to play", s.index)
		if s.failures >= len(s.snapshot.Items) {
			logrus.Warnf("Every item of playlist version %d failed, retry in %s", s.snapshot.Version, s.retryDelay)
			s.cancelPending()
			s.goIdle()
			s.armRetry()
			return
		}
	} else {
		s.failures = 0
	}
	s.play(s.index + 1)
}

func (s *Sequencer) expire(generation uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if generation != s.generation {
		return
	}
	s.timer = nil
	s.failures = 0
	s.play(s.index + 1)
}

func (s *Sequencer) armRetry() {
	s.generation++
	generation := s.generation
	s.timer = s.clock.AfterFunc(s.retryDelay, func() {
		s.lock.Lock()
		defer s.lock.Unlock()

		if generation != s.generation {
			return
		}
		s.timer = nil
		s.failures = 0
		s.play(0)
	})
}

// cancelPending invalidates the armed timer and the signal listener.
func (s *Sequencer) cancelPending() {
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.awaiting = false
}

func (s *Sequencer) goIdle() {
	s.phase = Idle
	s.index = 0
	s.renderer.Clear()
}

// EffectiveDuration resolves how long an image stays on screen. ok is false
// when the item must stay indefinitely: videos, and the single item of a
// playlist whose duration was explicitly left null.
func EffectiveDuration(entry apimodel.PlaylistEntry, media apimodel.MediaItem, count int, fallback time.Duration) (duration time.Duration, ok bool) {
	if media.IsVideo() {
		return 0, false
	}
	if count == 1 && entry.Duration == nil {
		return 0, false
	}
	if fallback <= 0 {
		fallback = DefaultFallbackDuration
	}
	if entry.Duration != nil && *entry.Duration > 0 {
		return time.Duration(*entry.Duration) * time.Second, true
	}
	if media.DefaultDuration != nil && *media.DefaultDuration > 0 {
		return time.Duration(*media.DefaultDuration) * time.Second, true
	}
	return fallback, true
}

func (s Status) String() string {
	return fmt.Sprintf("%s #%d/%d (version %d)", s.Phase, s.Index, s.ItemCount, s.Version)
}
