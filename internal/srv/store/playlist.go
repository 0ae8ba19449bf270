package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const playlistVersionKey = "playlist_version"

// ensureVersion seeds the version counter of a fresh database with the current
// time in milliseconds, so a recreated database never reissues a version a
// display has already cached.
func (s *Store) ensureVersion() error {
	seed := MetaRecord{Key: playlistVersionKey, Value: strconv.FormatInt(time.Now().UnixMilli(), 10)}
	err := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error
	if err != nil {
		return fmt.Errorf("unable to initialize playlist version: %w", err)
	}
	return nil
}

func readVersion(tx *gorm.DB) (apimodel.PlaylistVersion, error) {
	var meta MetaRecord
	if err := tx.Where("key = ?", playlistVersionKey).First(&meta).Error; err != nil {
		return 0, fmt.Errorf("unable to read playlist version: %w", err)
	}
	version, err := strconv.ParseInt(meta.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupted playlist version %q: %w", meta.Value, err)
	}
	return apimodel.PlaylistVersion(version), nil
}

// Playlist returns the active playlist in play order. Entries whose media was
// deleted carry a nil Media.
func (s *Store) Playlist(ctx context.Context) (apimodel.Playlist, error) {
	var playlist apimodel.Playlist
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		playlist, err = readPlaylist(tx)
		return err
	})
	return playlist, err
}

func readPlaylist(tx *gorm.DB) (apimodel.Playlist, error) {
	version, err := readVersion(tx)
	if err != nil {
		return apimodel.Playlist{}, err
	}

	var records []PlaylistRecord
	if err = tx.Order("position ASC").Find(&records).Error; err != nil {
		return apimodel.Playlist{}, fmt.Errorf("unable to read playlist: %w", err)
	}

	media := map[string]MediaRecord{}
	if len(records) > 0 {
		ids := make([]string, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.MediaId)
		}
		var mediaRecords []MediaRecord
		if err = tx.Where("id IN ?", ids).Find(&mediaRecords).Error; err != nil {
			return apimodel.Playlist{}, fmt.Errorf("unable to read playlist media: %w", err)
		}
		for _, record := range mediaRecords {
			media[record.Id] = record
		}
	}

	playlist := apimodel.Playlist{
		Version: version,
		Items:   make([]apimodel.PlaylistEntry, 0, len(records)),
	}
	for _, record := range records {
		entry := apimodel.PlaylistEntry{
			MediaId:  apimodel.MediaId(record.MediaId),
			Position: record.Position,
			Duration: record.Duration,
		}
		if mediaRecord, ok := media[record.MediaId]; ok {
			item := mediaRecord.toMediaItem()
			entry.Media = &item
		}
		playlist.Items = append(playlist.Items, entry)
	}
	return playlist, nil
}

// SetPlaylist replaces the whole playlist and issues a new version. Every
// referenced media must exist at write time.
func (s *Store) SetPlaylist(ctx context.Context, items []apimodel.PlaylistItemSpec) (apimodel.Playlist, error) {
	var playlist apimodel.Playlist
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			var count int64
			if err := tx.Model(&MediaRecord{}).Where("id = ?", string(item.MediaId)).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("media %s: %w", item.MediaId, ErrMediaNotFound)
			}
		}

		if err := tx.Where("1 = 1").Delete(&PlaylistRecord{}).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			records := make([]PlaylistRecord, 0, len(items))
			for position, item := range items {
				records = append(records, PlaylistRecord{
					MediaId:  string(item.MediaId),
					Position: position,
					Duration: item.Duration,
				})
			}
			if err := tx.Create(&records).Error; err != nil {
				return err
			}
		}

		version, err := readVersion(tx)
		if err != nil {
			return err
		}
		err = tx.Model(&MetaRecord{}).
			Where("key = ?", playlistVersionKey).
			Update("value", strconv.FormatInt(int64(version)+1, 10)).Error
		if err != nil {
			return err
		}

		playlist, err = readPlaylist(tx)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			return apimodel.Playlist{}, err
		}
		return apimodel.Playlist{}, fmt.Errorf("unable to save playlist: %w", err)
	}

	logrus.Infof("Playlist version %d saved (%d items)", playlist.Version, len(playlist.Items))
	return playlist, nil
}

func (s *Store) ClearPlaylist(ctx context.Context) (apimodel.Playlist, error) {
	return s.SetPlaylist(ctx, nil)
}
