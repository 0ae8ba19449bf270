package apimodel

type StatusResult struct {
	Status string `json:"status"`
}

type PlayResult struct {
	Status PlaybackState `json:"status"`
	Media  MediaItem     `json:"media"`
}
