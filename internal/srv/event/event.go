package event

import (
	"github.com/jypelle/pishow/apimodel"
)

// Player
type PlayerEvent struct {
	Data interface{}
}

// PlayerEventStoppedData is sent when the player process exits on its own.
// Err is nil for a clean exit.
type PlayerEventStoppedData struct {
	MediaId apimodel.MediaId
	Source  apimodel.PlaybackSource
	Err     error
}

// Scheduler
type SchedulerEvent struct {
	Data interface{}
}

type SchedulerEventFiredData struct {
	Trigger apimodel.TriggerName
	Err     error
}

type SchedulerEventOverrideData struct {
	State apimodel.PowerState
	Err   error
}

// Api
type ApiEvent struct {
	Result chan error
	Data   interface{}
}

type ApiEventMediaPlayData struct {
	Media apimodel.MediaItem
}

type ApiEventStopData struct{}

type ApiEventDisplayStartData struct{}

type ApiEventDisplayNextData struct{}
