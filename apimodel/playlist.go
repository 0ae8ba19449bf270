package apimodel

import (
	"fmt"
	"math"
)

type PlaylistVersion int64

// PlaylistEntry is one position of the active playlist. Media is nil when the
// referenced media no longer exists in the library.
type PlaylistEntry struct {
	MediaId  MediaId    `json:"media_id"`
	Position int        `json:"position"`
	Duration *int64     `json:"duration"`
	Media    *MediaItem `json:"media"`
}

type Playlist struct {
	Version PlaylistVersion `json:"version"`
	Items   []PlaylistEntry `json:"items"`
}

// Validate checks the shape of a playlist received from a remote source.
func (p Playlist) Validate() error {
	if p.Items == nil {
		return fmt.Errorf("playlist has no item sequence")
	}
	for i, item := range p.Items {
		if item.MediaId == "" {
			return fmt.Errorf("item at position %d has no media_id", i)
		}
		if item.Duration != nil && *item.Duration <= 0 {
			return fmt.Errorf("item at position %d: %w", i, ErrInvalidDuration)
		}
	}
	return nil
}

type PlaylistItemInput struct {
	MediaId  MediaId  `json:"media_id"`
	Duration *float64 `json:"duration"`
}

type PlaylistInput struct {
	Items *[]PlaylistItemInput `json:"items"`
}

// PlaylistItemSpec is a validated playlist position ready to be stored.
type PlaylistItemSpec struct {
	MediaId  MediaId
	Duration *int64
}

// Normalize validates the control surface payload.
func (in PlaylistInput) Normalize() ([]PlaylistItemSpec, error) {
	if in.Items == nil {
		return nil, fmt.Errorf("missing items")
	}
	specs := make([]PlaylistItemSpec, 0, len(*in.Items))
	for i, item := range *in.Items {
		if item.MediaId == "" {
			return nil, fmt.Errorf("item at position %d is invalid: media_id is required", i)
		}
		duration, err := normalizeDuration(item.Duration)
		if err != nil {
			return nil, fmt.Errorf("item at position %d: %w", i, err)
		}
		specs = append(specs, PlaylistItemSpec{MediaId: item.MediaId, Duration: duration})
	}
	return specs, nil
}

func normalizeDuration(duration *float64) (*int64, error) {
	if duration == nil {
		return nil, nil
	}
	if math.IsNaN(*duration) || math.IsInf(*duration, 0) {
		return nil, ErrInvalidDuration
	}
	seconds := int64(*duration)
	if seconds <= 0 {
		return nil, ErrInvalidDuration
	}
	return &seconds, nil
}
