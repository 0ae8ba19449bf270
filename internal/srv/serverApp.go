package srv

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/clock"
	"github.com/jypelle/pishow/internal/srv/config"
	"github.com/jypelle/pishow/internal/srv/device"
	"github.com/jypelle/pishow/internal/srv/display"
	"github.com/jypelle/pishow/internal/srv/poller"
	"github.com/jypelle/pishow/internal/srv/store"
	"github.com/jypelle/pishow/internal/version"
	"github.com/sirupsen/logrus"
)

const remoteSourceTimeout = 10 * time.Second

type ServerApp struct {
	*config.ServerConfig
	store     *store.Store
	schedules *config.ScheduleStore
	clock     clock.Clock

	playerDevice          *device.Player
	schedulerDevice       *device.Scheduler
	scheduleWatcherDevice *device.ScheduleWatcher
	statusHub             *device.StatusHub
	apiDevice             *device.Api

	session *display.Session

	eventLoopAskDone chan bool
	eventLoopDone    chan bool
}

func NewServerApp(serverConfig *config.ServerConfig) (*ServerApp, error) {

	logrus.Debugf("Creation of pishow server %s ...", version.AppVersion.String())

	app := &ServerApp{
		ServerConfig:     serverConfig,
		clock:            clock.Real{},
		eventLoopAskDone: make(chan bool),
		eventLoopDone:    make(chan bool),
	}

	var err error
	app.store, err = store.Open(app.GetCompleteDatabaseFilename(), app.GetCompleteMediaRoot())
	if err != nil {
		return nil, err
	}

	app.schedules, err = config.NewScheduleStore(app.GetCompleteScheduleFilename())
	if err != nil {
		app.store.Close()
		return nil, err
	}

	transport, err := device.NewPowerTransport(app.ProjectorParam, app.SimulationMode)
	if err != nil {
		app.store.Close()
		return nil, err
	}

	app.playerDevice = device.NewPlayer(app.PlayerParam)
	app.schedulerDevice = device.NewScheduler(app.clock, app.schedules, transport, app.ProjectorParam.TickInterval())
	if app.ProjectorParam.WatchSchedule {
		app.scheduleWatcherDevice = device.NewScheduleWatcher(app.schedules.Filename(), app.schedulerDevice.Wake)
	}

	// Playlist comes from the local library unless another pishow server publishes it
	var source poller.Source = app.store
	var locator display.MediaLocator = app.store
	if app.DisplayParam.SourceUrl != "" {
		logrus.Infof("Display playlist from %s", app.DisplayParam.SourceUrl)
		source = poller.NewHTTPSource(app.DisplayParam.SourceUrl, &http.Client{Timeout: remoteSourceTimeout})
		locator = display.NewRemoteMedia(app.DisplayParam.SourceUrl)
	}
	app.session = display.NewSession(app.clock, source, display.NewPlayerRenderer(app.playerDevice, locator), app.DisplayParam)

	app.statusHub = device.NewStatusHub(app.snapshot)
	app.apiDevice = device.NewApi(app.ServerConfig, device.ApiBackend{
		Store:     app.store,
		Schedules: app.schedules,
		Scheduler: app.schedulerDevice,
		Player:    app.playerDevice,
		Display:   app.session,
		Hub:       app.statusHub,
		State:     app.ServerState,
	})

	logrus.Debugln("Server created")

	return app, nil
}

func (s *ServerApp) Start() {
	logrus.Printf("Starting pishow server ...")

	logrus.Printf("Starting devices ...")

	// Start player device
	s.playerDevice.Start()

	// Resume what was showing before the restart
	if !s.resumeLastPlayed() && s.DisplayParam.Enabled {
		s.session.Start()
	}

	// Start event loop
	go s.eventLoop()

	// Start scheduler device
	s.schedulerDevice.Start()

	// Start schedule watcher device
	if s.scheduleWatcherDevice != nil {
		if err := s.scheduleWatcherDevice.Start(); err != nil {
			logrus.Warnf("Schedule file changes will not be detected: %v", err)
		}
	}

	// Start api device
	s.apiDevice.Start()
}

func (s *ServerApp) Stop() {
	logrus.Printf("Stopping pishow server ...")

	// Stop api
	s.apiDevice.StopSendingEvent()
	s.statusHub.Stop()

	// Stop scheduler device
	s.schedulerDevice.StopSendingEvent()

	// Stop schedule watcher device
	if s.scheduleWatcherDevice != nil {
		s.scheduleWatcherDevice.Stop()
	}

	// Stop player events
	s.playerDevice.StopSendingEvent()

	// Stop event loop
	logrus.Infof("Stop event loop")
	s.eventLoopAskDone <- true
	<-s.eventLoopDone

	// Stop display session
	s.session.Stop()

	// Stop player
	s.playerDevice.Stop()

	// Flush config backup
	s.ServerConfig.ServerState.FlushSave()

	if err := s.store.Close(); err != nil {
		logrus.Warnf("Unable to close database: %v", err)
	}

	logrus.Printf("Server stopped")
}

// resumeLastPlayed replays the last manually played media when auto_resume is
// set and its file is still there.
func (s *ServerApp) resumeLastPlayed() bool {
	if !s.AutoResume {
		return false
	}
	id := s.LastPlayed()
	if id == nil {
		return false
	}

	media, err := s.store.GetMedia(context.Background(), *id)
	if err != nil {
		logrus.Infof("Skip auto resume of %s: %v", *id, err)
		return false
	}
	if exists, err := s.store.MediaFileExists(media); err != nil || !exists {
		logrus.Infof("Skip auto resume of %s: media file missing", media.Filename)
		return false
	}

	if err = s.playManual(media); err != nil {
		logrus.Warnf("Failed to auto resume %s: %v", media.Filename, err)
		return false
	}
	return true
}

// playManual suspends the display session and loops media until stopped.
func (s *ServerApp) playManual(media apimodel.MediaItem) error {
	s.session.Stop()

	err := s.playerDevice.Play(media, s.store.MediaPath(media), device.PlayOptions{
		Loop:   true,
		Source: apimodel.PlaybackSourceManual,
	}, nil)
	if err != nil {
		return err
	}
	s.SetLastPlayed(media.Id)
	return nil
}

func (s *ServerApp) snapshot() apimodel.StatusMessage {
	playback := s.playerDevice.Status()
	display := s.session.Status()
	return apimodel.StatusMessage{
		Type:      apimodel.StatusMessageSnapshot,
		Playback:  &playback,
		Display:   &display,
		Timestamp: s.clock.Now().UnixMilli(),
	}
}

func (s *ServerApp) broadcastPlayback() {
	playback := s.playerDevice.Status()
	display := s.session.Status()
	s.statusHub.Broadcast(apimodel.StatusMessage{
		Type:      apimodel.StatusMessagePlayback,
		Playback:  &playback,
		Display:   &display,
		Timestamp: s.clock.Now().UnixMilli(),
	})
}

func (s *ServerApp) broadcastProjector(format string, args ...interface{}) {
	s.statusHub.Broadcast(apimodel.StatusMessage{
		Type:      apimodel.StatusMessageProjector,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: s.clock.Now().UnixMilli(),
	})
}
