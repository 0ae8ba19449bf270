package apimodel

type PlaybackState string

const (
	PlaybackStateIdle    PlaybackState = "idle"
	PlaybackStatePlaying PlaybackState = "playing"
)

type PlaybackSource string

const (
	PlaybackSourceManual   PlaybackSource = "manual"
	PlaybackSourcePlaylist PlaybackSource = "playlist"
)

type PlaybackDetails struct {
	MediaId   MediaId        `json:"media_id"`
	MediaType MediaType      `json:"media_type"`
	Path      string         `json:"path"`
	Command   []string       `json:"command"`
	Loop      bool           `json:"loop"`
	Source    PlaybackSource `json:"source"`
}

type PlaybackStatus struct {
	Status  PlaybackState    `json:"status"`
	Media   *MediaItem       `json:"media"`
	Details *PlaybackDetails `json:"details,omitempty"`
}

type DisplayStatus struct {
	Running        bool            `json:"running"`
	Phase          string          `json:"phase"`
	Index          int             `json:"index"`
	Version        PlaylistVersion `json:"version"`
	PolledVersion  *int64          `json:"polled_version"`
	Current        *MediaItem      `json:"current"`
	ItemCount      int             `json:"item_count"`
	TimerArmed     bool            `json:"timer_armed"`
	AwaitingSignal bool            `json:"awaiting_signal"`
}

type StatusMessageType string

const (
	StatusMessageSnapshot  StatusMessageType = "snapshot"
	StatusMessagePlayback  StatusMessageType = "playback"
	StatusMessageProjector StatusMessageType = "projector"
)

// StatusMessage is pushed to websocket observers.
type StatusMessage struct {
	Type      StatusMessageType `json:"type"`
	Playback  *PlaybackStatus   `json:"playback,omitempty"`
	Display   *DisplayStatus    `json:"display,omitempty"`
	Message   string            `json:"message,omitempty"`
	Timestamp int64             `json:"timestamp"`
}
