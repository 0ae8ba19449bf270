package device

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/jypelle/pishow/internal/srv/event"
	"github.com/sirupsen/logrus"
)

var ErrPlayerNotFound = errors.New("player executable not found")

type PlayOptions struct {
	// Loop replays a video forever. Images are always held on screen.
	Loop   bool
	Source apimodel.PlaybackSource
}

type playback struct {
	cmd     *exec.Cmd
	exited  chan struct{}
	media   apimodel.MediaItem
	details apimodel.PlaybackDetails
}

// Player owns the single fullscreen player process attached to the
// projector output. Starting a media always terminates the previous process
// first, so two processes never coexist.
type Player struct {
	lock         sync.RWMutex
	eventChannel chan event.PlayerEvent

	command     string
	extraArgs   []string
	gracePeriod time.Duration

	// buildCommand is replaced in tests
	buildCommand func(path string, mediaType apimodel.MediaType, loop bool) []string

	current *playback

	sendEvent bool
}

func NewPlayer(param config.PlayerParam) *Player {
	player := &Player{
		eventChannel: make(chan event.PlayerEvent),
		command:      param.Command,
		extraArgs:    param.ExtraArgs,
		gracePeriod:  param.GracePeriod(),
		sendEvent:    true,
	}
	if player.gracePeriod <= 0 {
		player.gracePeriod = 5 * time.Second
	}
	player.buildCommand = player.mpvCommand
	return player
}

func (d *Player) Start() {
	logrus.Infof("Start player device")
}

func (d *Player) StopSendingEvent() {
	logrus.Infof("Stop sending events for player device")

	d.lock.Lock()
	defer d.lock.Unlock()

	d.sendEvent = false
}

// Stop terminates the player process, if any.
func (d *Player) Stop() {
	logrus.Infof("Stop player device")
	d.Clear()
}

func (d *Player) EventChannel() chan event.PlayerEvent {
	return d.eventChannel
}

// Play replaces the current process with one showing media. onExit, when not
// nil, is called once if the process exits by itself (err nil for a clean
// exit), never when it is stopped through Play, Clear or Stop.
func (d *Player) Play(media apimodel.MediaItem, path string, options PlayOptions, onExit func(err error)) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.clear()

	if !strings.Contains(path, "://") {
		if absPath, err := filepath.Abs(path); err == nil {
			path = absPath
		}
	}
	args := d.buildCommand(path, media.MediaType, options.Loop)
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%s: %w", args[0], ErrPlayerNotFound)
		}
		return fmt.Errorf("unable to start %s: %w", args[0], err)
	}

	current := &playback{
		cmd:    cmd,
		exited: make(chan struct{}),
		media:  media,
		details: apimodel.PlaybackDetails{
			MediaId:   media.Id,
			MediaType: media.MediaType,
			Path:      path,
			Command:   args,
			Loop:      options.Loop,
			Source:    options.Source,
		},
	}
	d.current = current
	logrus.Infof("Playing %s %s (%s)", media.MediaType, media.Filename, options.Source)

	go d.watch(current, onExit)

	return nil
}

// watch reaps the process. exited is closed before taking the lock so clear
// can wait for it while holding the lock.
func (d *Player) watch(current *playback, onExit func(err error)) {
	err := current.cmd.Wait()
	close(current.exited)

	d.lock.Lock()
	unexpected := d.current == current
	if unexpected {
		d.current = nil
	}
	sendEvent := d.sendEvent
	d.lock.Unlock()

	if !unexpected {
		return
	}

	if err != nil {
		logrus.Warnf("Player stopped playing %s: %v", current.media.Filename, err)
	} else {
		logrus.Infof("Player finished playing %s", current.media.Filename)
	}
	if onExit != nil {
		onExit(err)
	}
	if sendEvent {
		data := event.PlayerEventStoppedData{MediaId: current.media.Id, Source: current.details.Source, Err: err}
		go func() { d.eventChannel <- event.PlayerEvent{Data: data} }()
	}
}

// Status never reports playing without a live process.
func (d *Player) Status() apimodel.PlaybackStatus {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.current == nil {
		return apimodel.PlaybackStatus{Status: apimodel.PlaybackStateIdle}
	}
	media := d.current.media
	details := d.current.details
	details.Command = append([]string(nil), details.Command...)
	return apimodel.PlaybackStatus{
		Status:  apimodel.PlaybackStatePlaying,
		Media:   &media,
		Details: &details,
	}
}

func (d *Player) Clear() {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.clear()
}

// clear terminates the current process: SIGTERM, then SIGKILL once the grace
// period is over.
func (d *Player) clear() {
	if d.current == nil {
		return
	}
	current := d.current
	d.current = nil

	if err := current.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		logrus.Debugf("Unable to signal player process: %v", err)
	}
	select {
	case <-current.exited:
		return
	case <-time.After(d.gracePeriod):
	}

	logrus.Warnf("Player did not stop within %s, killing it", d.gracePeriod)
	if err := current.cmd.Process.Kill(); err != nil {
		logrus.Errorf("Failed to kill process: %v", err)
	}
	<-current.exited
}

func (d *Player) mpvCommand(path string, mediaType apimodel.MediaType, loop bool) []string {
	args := []string{d.command, "--fs", "--no-terminal"}
	args = append(args, d.extraArgs...)
	if mediaType == apimodel.MediaTypeVideo {
		if loop {
			args = append(args, "--loop=inf")
		}
	} else {
		args = append(args, "--loop-file=inf", "--image-display-duration=inf", "--keep-open=yes")
	}
	return append(args, path)
}
