package apimodel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MediaId identifies a media item. Control surfaces sometimes send it as a
// JSON number, so both forms are accepted.
type MediaId string

func (id *MediaId) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MediaId(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("media_id must be a string or an integer")
	}
	*id = MediaId(n.String())
	return nil
}

type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

type MediaItem struct {
	Id              MediaId   `json:"id"`
	MediaType       MediaType `json:"media_type"`
	Filename        string    `json:"filename"`
	OriginalName    string    `json:"original_name"`
	DefaultDuration *int64    `json:"default_duration"`
	CreatedAt       time.Time `json:"created_at"`
}

func (m MediaItem) IsVideo() bool {
	return m.MediaType == MediaTypeVideo
}

type MediaList struct {
	Items []MediaItem `json:"items"`
}

type MediaDurationInput struct {
	Duration *float64 `json:"duration"`
}

// Seconds validates the optional default duration of an image.
func (in MediaDurationInput) Seconds() (*int64, error) {
	return normalizeDuration(in.Duration)
}
