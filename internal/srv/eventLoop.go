package srv

import (
	"fmt"

	"github.com/jypelle/pishow/internal/srv/event"
	"github.com/sirupsen/logrus"
)

func (s *ServerApp) eventLoop() {
	for loop := true; loop; {
		select {
		case ev := <-s.apiDevice.EventChannel():
			switch data := ev.Data.(type) {
			case event.ApiEventMediaPlayData:
				err := s.playManual(data.Media)
				ev.Result <- err
				s.broadcastPlayback()
			case event.ApiEventStopData:
				s.session.Stop()
				s.playerDevice.Clear()
				ev.Result <- nil
				s.broadcastPlayback()
			case event.ApiEventDisplayStartData:
				s.session.Stop()
				s.session.Start()
				ev.Result <- nil
				s.broadcastPlayback()
			case event.ApiEventDisplayNextData:
				err := s.session.Next()
				ev.Result <- err
				s.broadcastPlayback()
			default:
				ev.Result <- fmt.Errorf("unsupported api event %T", data)
			}
		case ev := <-s.playerDevice.EventChannel():
			switch data := ev.Data.(type) {
			case event.PlayerEventStoppedData:
				logrus.Debugf("Receive player stopped event for %s (%s)", data.MediaId, data.Source)
				s.broadcastPlayback()
			}
		case ev := <-s.schedulerDevice.EventChannel():
			switch data := ev.Data.(type) {
			case event.SchedulerEventFiredData:
				logrus.Debugf("Receive scheduler fired event: %s", data.Trigger)
				if data.Err != nil {
					s.broadcastProjector("%s failed: %v", data.Trigger, data.Err)
				} else {
					s.broadcastProjector("%s", data.Trigger)
				}
			case event.SchedulerEventOverrideData:
				logrus.Debugf("Receive scheduler override event: %s", data.State)
				if data.Err != nil {
					s.broadcastProjector("power %s failed: %v", data.State, data.Err)
				} else {
					s.broadcastProjector("power %s", data.State)
				}
			}
		case <-s.eventLoopAskDone:
			loop = false
		}
	}
	s.eventLoopDone <- true
}
