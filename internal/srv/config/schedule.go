package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio/v2"
	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/tool"
	"github.com/sirupsen/logrus"
)

// ScheduleStore persists the projector schedule as a JSON document. Every
// update replaces the whole file atomically, so readers never see a partial
// schedule.
type ScheduleStore struct {
	lock     sync.Mutex
	filename string
}

// NewScheduleStore writes the default schedule (both triggers disabled) when
// the file does not exist yet.
func NewScheduleStore(filename string) (*ScheduleStore, error) {
	store := &ScheduleStore{filename: filename}

	exists, err := tool.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to access schedule file: %w", err)
	}
	if !exists {
		logrus.Infof("Create default schedule file")
		if err = store.write(apimodel.DefaultSchedule()); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *ScheduleStore) Filename() string {
	return s.filename
}

// Read loads the schedule from disk.
func (s *ScheduleStore) Read() (apimodel.Schedule, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	raw, err := os.ReadFile(s.filename)
	if os.IsNotExist(err) {
		return apimodel.DefaultSchedule(), nil
	}
	if err != nil {
		return apimodel.Schedule{}, fmt.Errorf("unable to read schedule file: %w", err)
	}

	var schedule apimodel.Schedule
	if err = json.Unmarshal(raw, &schedule); err != nil {
		return apimodel.Schedule{}, fmt.Errorf("unable to interpret schedule file: %w", err)
	}
	// hand edits are held to the same rules as API updates
	schedule, err = schedule.Normalize()
	if err != nil {
		return apimodel.Schedule{}, fmt.Errorf("invalid schedule file: %w", err)
	}
	return schedule, nil
}

// Update validates and persists schedule, returning the stored form.
func (s *ScheduleStore) Update(schedule apimodel.Schedule) (apimodel.Schedule, error) {
	normalized, err := schedule.Normalize()
	if err != nil {
		return apimodel.Schedule{}, err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	if err = s.write(normalized); err != nil {
		return apimodel.Schedule{}, err
	}
	logrus.Infof("Projector schedule updated")
	return normalized, nil
}

func (s *ScheduleStore) write(schedule apimodel.Schedule) error {
	raw, err := json.MarshalIndent(schedule, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to serialize schedule: %w", err)
	}
	raw = append(raw, '\n')
	if err = renameio.WriteFile(s.filename, raw, 0660); err != nil {
		return fmt.Errorf("unable to save schedule file: %w", err)
	}
	return nil
}
