// Package store persists the media library and the active playlist in an
// embedded sqlite database.
package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrMediaNotFound        = errors.New("media not found")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

type Store struct {
	db        *gorm.DB
	mediaRoot string
}

// Open creates the media folder and the database schema when missing.
func Open(filename string, mediaRoot string) (*Store, error) {
	if err := os.MkdirAll(mediaRoot, 0770); err != nil {
		return nil, fmt.Errorf("unable to create media folder %s: %w", mediaRoot, err)
	}

	db, err := gorm.Open(sqlite.Open(filename+"?_foreign_keys=on&_busy_timeout=5000"), &gorm.Config{
		Logger: logger.New(logrus.StandardLogger(), logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open database %s: %w", filename, err)
	}

	// sqlite only supports one writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to access database %s: %w", filename, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err = db.AutoMigrate(&MediaRecord{}, &PlaylistRecord{}, &MetaRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("unable to migrate database %s: %w", filename, err)
	}

	s := &Store{db: db, mediaRoot: mediaRoot}
	if err = s.ensureVersion(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	logrus.Debugf("Database %s opened", filename)
	return s, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) MediaRoot() string {
	return s.mediaRoot
}
