package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const saveDelay = 10 * time.Second

type ServerState struct {
	serverStateConfig     ServerStateConfig
	lock                  sync.RWMutex
	backupTimer           *time.Timer
	completeStateFilename string
}

type ServerStateConfig struct {
	LastPlayedId *apimodel.MediaId `yaml:"last_played_id"`
	LastPlayedAt *time.Time        `yaml:"last_played_at"`
}

func NewServerState(completeStateFilename string) (*ServerState, error) {
	serverState := &ServerState{
		completeStateFilename: completeStateFilename,
	}

	rawConfig, err := os.ReadFile(completeStateFilename)
	if err == nil {
		// Interpret state file
		err = yaml.Unmarshal(rawConfig, &serverState.serverStateConfig)
		if err != nil {
			return nil, fmt.Errorf("unable to interpret state file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to read state file: %w", err)
	} else {
		logrus.Infof("No state file yet")
	}

	return serverState, nil
}

// LastPlayed returns the media last started by hand, nil if none.
func (ss *ServerState) LastPlayed() *apimodel.MediaId {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	if ss.serverStateConfig.LastPlayedId == nil {
		return nil
	}
	id := *ss.serverStateConfig.LastPlayedId
	return &id
}

func (ss *ServerState) SetLastPlayed(id apimodel.MediaId) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	now := time.Now().UTC()
	ss.serverStateConfig.LastPlayedId = &id
	ss.serverStateConfig.LastPlayedAt = &now
	ss.scheduleSave()
}

// ClearLastPlayed forgets the last played media if it is id.
func (ss *ServerState) ClearLastPlayed(id apimodel.MediaId) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	if ss.serverStateConfig.LastPlayedId == nil || *ss.serverStateConfig.LastPlayedId != id {
		return
	}
	ss.serverStateConfig.LastPlayedId = nil
	ss.serverStateConfig.LastPlayedAt = nil
	ss.scheduleSave()
}

func (ss *ServerState) scheduleSave() {
	if ss.backupTimer == nil {
		ss.backupTimer = time.AfterFunc(saveDelay, func() {
			ss.lock.Lock()
			defer ss.lock.Unlock()
			ss.save()
		})
	} else {
		ss.backupTimer.Reset(saveDelay)
	}
}

func (ss *ServerState) save() {
	logrus.Infof("Save state file: %s", ss.completeStateFilename)
	rawConfig, err := yaml.Marshal(&ss.serverStateConfig)
	if err != nil {
		logrus.Errorf("Unable to serialize state file: %v", err)
		return
	}
	err = os.WriteFile(ss.completeStateFilename, rawConfig, 0660)
	if err != nil {
		logrus.Errorf("Unable to save state file: %v", err)
	}
}

// FlushSave writes a pending change immediately.
func (ss *ServerState) FlushSave() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.backupTimer != nil {
		if ss.backupTimer.Stop() {
			ss.save()
		}
	}
}
