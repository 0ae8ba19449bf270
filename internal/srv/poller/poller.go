// Package poller watches a playlist source and hands every new version to a
// reconciler.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/clock"
	"github.com/sirupsen/logrus"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 10 * time.Second
)

type Source interface {
	Playlist(ctx context.Context) (apimodel.Playlist, error)
}

type Reconciler interface {
	Reconcile(playlist apimodel.Playlist)
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Poller fetches the playlist on a constant interval. The next fetch is only
// armed once the previous one has completed, so fetches never overlap.
type Poller struct {
	lock   sync.Mutex
	clock  clock.Clock
	source Source
	target Reconciler

	interval time.Duration
	timeout  time.Duration

	running     bool
	generation  uint64
	timer       clock.Timer
	cancelFetch context.CancelFunc
	lastVersion *apimodel.PlaylistVersion
}

func New(clk clock.Clock, source Source, target Reconciler, options Options) *Poller {
	if options.Interval <= 0 {
		options.Interval = DefaultInterval
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	return &Poller{
		clock:    clk,
		source:   source,
		target:   target,
		interval: options.Interval,
		timeout:  options.Timeout,
	}
}

// Start forgets the last observed version and schedules an immediate fetch.
func (p *Poller) Start() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.running {
		return
	}
	logrus.Infof("Start playlist poller (every %s)", p.interval)
	p.running = true
	p.generation++
	p.lastVersion = nil
	p.arm(0, p.generation)
}

// Stop cancels the pending fetch. A fetch already in flight is aborted and its
// result discarded.
func (p *Poller) Stop() {
	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.running {
		return
	}
	logrus.Infof("Stop playlist poller")
	p.running = false
	p.generation++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.cancelFetch != nil {
		p.cancelFetch()
		p.cancelFetch = nil
	}
}

func (p *Poller) Running() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.running
}

// LastVersion returns the last version handed to the reconciler, nil before
// the first successful fetch.
func (p *Poller) LastVersion() *apimodel.PlaylistVersion {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.lastVersion == nil {
		return nil
	}
	version := *p.lastVersion
	return &version
}

func (p *Poller) arm(d time.Duration, generation uint64) {
	p.timer = p.clock.AfterFunc(d, func() { p.tick(generation) })
}

func (p *Poller) tick(generation uint64) {
	p.lock.Lock()
	if !p.running || generation != p.generation {
		p.lock.Unlock()
		return
	}
	p.timer = nil
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	p.cancelFetch = cancel
	p.lock.Unlock()

	playlist, err := p.source.Playlist(ctx)
	cancel()

	p.lock.Lock()
	defer p.lock.Unlock()

	if !p.running || generation != p.generation {
		logrus.Debugf("Discard playlist fetched after poller stop")
		return
	}
	p.cancelFetch = nil
	defer p.arm(p.interval, generation)

	if err != nil {
		logrus.Warnf("Unable to fetch playlist: %v", err)
		return
	}
	if p.lastVersion != nil && *p.lastVersion == playlist.Version {
		return
	}

	logrus.Infof("New playlist version %d", playlist.Version)
	version := playlist.Version
	p.lastVersion = &version
	p.target.Reconcile(playlist)
}
