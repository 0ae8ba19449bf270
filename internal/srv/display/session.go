// Package display runs the unattended playlist presentation: a poller keeps
// a sequencer in sync with the playlist source.
package display

import (
	"errors"
	"sync"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/clock"
	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/jypelle/pishow/internal/srv/poller"
	"github.com/jypelle/pishow/internal/srv/sequencer"
	"github.com/sirupsen/logrus"
)

var ErrSessionStopped = errors.New("display session is not running")

type Session struct {
	lock      sync.Mutex
	running   bool
	sequencer *sequencer.Sequencer
	poller    *poller.Poller
}

func NewSession(clk clock.Clock, source poller.Source, renderer sequencer.Renderer, param config.DisplayParam) *Session {
	seq := sequencer.New(clk, renderer, sequencer.Options{
		FallbackDuration: param.FallbackDuration(),
		RetryDelay:       param.RetryDelay(),
	})
	return &Session{
		sequencer: seq,
		poller:    poller.New(clk, source, seq, poller.Options{Interval: param.PollInterval()}),
	}
}

// Start begins polling, the first playlist is fetched right away.
func (s *Session) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		return
	}
	logrus.Infof("Start display session")
	s.running = true
	s.poller.Start()
}

// Stop halts polling then blanks the projector. A stopped session leaves the
// player alone.
func (s *Session) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.running {
		return
	}
	logrus.Infof("Stop display session")
	s.running = false
	s.poller.Stop()
	s.sequencer.Stop()
}

func (s *Session) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

func (s *Session) Next() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if !s.running {
		return ErrSessionStopped
	}
	s.sequencer.Next()
	return nil
}

func (s *Session) Status() apimodel.DisplayStatus {
	running := s.Running()
	status := s.sequencer.Status()

	display := apimodel.DisplayStatus{
		Running:        running,
		Phase:          status.Phase.String(),
		Index:          status.Index,
		Version:        status.Version,
		Current:        status.Current,
		ItemCount:      status.ItemCount,
		TimerArmed:     status.TimerArmed,
		AwaitingSignal: status.AwaitingSignal,
	}
	if polled := s.poller.LastVersion(); polled != nil {
		version := int64(*polled)
		display.PolledVersion = &version
	}
	return display
}
