package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/tool"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultImageDuration is given to every uploaded image.
const DefaultImageDuration int64 = 8

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true, ".m4v": true,
}

// MediaTypeOf guesses the media type from the file extension.
func MediaTypeOf(filename string) (apimodel.MediaType, error) {
	extension := strings.ToLower(filepath.Ext(filename))
	switch {
	case imageExtensions[extension]:
		return apimodel.MediaTypeImage, nil
	case videoExtensions[extension]:
		return apimodel.MediaTypeVideo, nil
	}
	return "", fmt.Errorf("extension '%s' is not supported: %w", extension, ErrUnsupportedMediaType)
}

func (s *Store) ListMedia(ctx context.Context) ([]apimodel.MediaItem, error) {
	var records []MediaRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("unable to list media: %w", err)
	}
	items := make([]apimodel.MediaItem, 0, len(records))
	for _, record := range records {
		items = append(items, record.toMediaItem())
	}
	return items, nil
}

func (s *Store) GetMedia(ctx context.Context, id apimodel.MediaId) (apimodel.MediaItem, error) {
	var record MediaRecord
	err := s.db.WithContext(ctx).Where("id = ?", string(id)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apimodel.MediaItem{}, fmt.Errorf("media %s: %w", id, ErrMediaNotFound)
	}
	if err != nil {
		return apimodel.MediaItem{}, fmt.Errorf("unable to read media %s: %w", id, err)
	}
	return record.toMediaItem(), nil
}

// AddMedia copies content under the media root with a generated name and
// registers it in the library.
func (s *Store) AddMedia(ctx context.Context, originalName string, content io.Reader) (apimodel.MediaItem, error) {
	originalName = filepath.Base(originalName)
	mediaType, err := MediaTypeOf(originalName)
	if err != nil {
		return apimodel.MediaItem{}, err
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	record := MediaRecord{
		Id:           id,
		MediaType:    string(mediaType),
		Filename:     id + strings.ToLower(filepath.Ext(originalName)),
		OriginalName: originalName,
		CreatedAt:    time.Now().UTC(),
	}
	if mediaType == apimodel.MediaTypeImage {
		duration := DefaultImageDuration
		record.DefaultDuration = &duration
	}

	destination := filepath.Join(s.mediaRoot, record.Filename)
	if err = writeFile(destination, content); err != nil {
		return apimodel.MediaItem{}, err
	}

	if err = s.db.WithContext(ctx).Create(&record).Error; err != nil {
		os.Remove(destination)
		return apimodel.MediaItem{}, fmt.Errorf("unable to register media %s: %w", originalName, err)
	}

	logrus.Infof("Media %s added: %s (%s)", record.Id, originalName, mediaType)
	return record.toMediaItem(), nil
}

// DeleteMedia removes the media and its file. Playlist entries referencing it
// are kept and resolved as missing.
func (s *Store) DeleteMedia(ctx context.Context, id apimodel.MediaId) error {
	var record MediaRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", string(id)).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("media %s: %w", id, ErrMediaNotFound)
			}
			return err
		}
		return tx.Delete(&record).Error
	})
	if err != nil {
		return err
	}

	if err = os.Remove(filepath.Join(s.mediaRoot, record.Filename)); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Unable to remove media file %s: %v", record.Filename, err)
	}
	logrus.Infof("Media %s deleted", id)
	return nil
}

// SetDefaultDuration changes the display duration of an image, nil resets it
// to the player fallback.
func (s *Store) SetDefaultDuration(ctx context.Context, id apimodel.MediaId, duration *int64) (apimodel.MediaItem, error) {
	result := s.db.WithContext(ctx).Model(&MediaRecord{}).Where("id = ?", string(id)).Update("default_duration", duration)
	if result.Error != nil {
		return apimodel.MediaItem{}, fmt.Errorf("unable to update media %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return apimodel.MediaItem{}, fmt.Errorf("media %s: %w", id, ErrMediaNotFound)
	}
	return s.GetMedia(ctx, id)
}

func (s *Store) MediaPath(media apimodel.MediaItem) string {
	return filepath.Join(s.mediaRoot, media.Filename)
}

// MediaFileExists reports whether the file of a registered media is still on disk.
func (s *Store) MediaFileExists(media apimodel.MediaItem) (bool, error) {
	return tool.IsFileExists(s.MediaPath(media))
}

func writeFile(destination string, content io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(destination), ".upload-*")
	if err != nil {
		return fmt.Errorf("unable to store media: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("unable to store media: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("unable to store media: %w", err)
	}
	if err = os.Rename(tmp.Name(), destination); err != nil {
		return fmt.Errorf("unable to store media: %w", err)
	}
	return nil
}
