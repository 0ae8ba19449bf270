package store

import (
	"time"

	"github.com/jypelle/pishow/apimodel"
)

type MediaRecord struct {
	Id              string `gorm:"primaryKey;size:32"`
	MediaType       string `gorm:"size:8;not null"`
	Filename        string `gorm:"size:255;not null;uniqueIndex"`
	OriginalName    string `gorm:"not null"`
	DefaultDuration *int64
	CreatedAt       time.Time `gorm:"index"`
}

func (MediaRecord) TableName() string {
	return "media_records"
}

func (r MediaRecord) toMediaItem() apimodel.MediaItem {
	return apimodel.MediaItem{
		Id:              apimodel.MediaId(r.Id),
		MediaType:       apimodel.MediaType(r.MediaType),
		Filename:        r.Filename,
		OriginalName:    r.OriginalName,
		DefaultDuration: r.DefaultDuration,
		CreatedAt:       r.CreatedAt,
	}
}

// PlaylistRecord is one position of the active playlist. MediaId is not a
// foreign key: deleting a media leaves the entry in place and it is resolved
// as missing.
type PlaylistRecord struct {
	Id       uint   `gorm:"primaryKey"`
	MediaId  string `gorm:"size:32;not null;index"`
	Position int    `gorm:"not null;uniqueIndex"`
	Duration *int64
}

func (PlaylistRecord) TableName() string {
	return "playlist_records"
}

type MetaRecord struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string `gorm:"not null"`
}

func (MetaRecord) TableName() string {
	return "meta_records"
}
