package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const paramFilename = "param.yaml"
const stateFilename = "state.yaml"
const scheduleFilename = "projector_schedule.json"
const databaseFilename = "pishow.sqlite3"
const mediaFolder = "media"

type ServerConfig struct {
	ConfigDir      string
	DebugMode      bool
	SimulationMode bool

	*ServerParam
	*ServerState
}

// NewServerConfig loads the config folder and stops the process when it is
// unusable.
func NewServerConfig(configDir string, debugMode bool, simulationMode bool) *ServerConfig {
	serverConfig, err := LoadServerConfig(configDir, debugMode, simulationMode)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	return serverConfig
}

func LoadServerConfig(configDir string, debugMode bool, simulationMode bool) (*ServerConfig, error) {
	serverConfig := &ServerConfig{
		ConfigDir:      configDir,
		DebugMode:      debugMode,
		SimulationMode: simulationMode,
	}

	// Check Configuration folder
	_, err := os.Stat(configDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to access config folder %s: %w", configDir, err)
		}
		logrus.Printf("Creation of config folder: %s", configDir)
		if err = os.MkdirAll(configDir, 0770); err != nil {
			return nil, fmt.Errorf("unable to create config folder: %w", err)
		}
	}

	// Open param file
	serverConfig.ServerParam = &ServerParam{}
	err = yaml.Unmarshal(ParamDefaultFile, serverConfig.ServerParam)
	if err != nil {
		return nil, fmt.Errorf("unable to interpret default param file: %w", err)
	}
	rawConfig, err := os.ReadFile(serverConfig.GetCompleteParamFilename())
	if err == nil {
		// Interpret param file over the defaults so new keys keep a value
		err = yaml.Unmarshal(rawConfig, serverConfig.ServerParam)
		if err != nil {
			return nil, fmt.Errorf("unable to interpret param file: %w", err)
		}
	} else if os.IsNotExist(err) {
		logrus.Infof("Create default param file")
		if err = serverConfig.SaveParam(); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("unable to read param file: %w", err)
	}

	applyEnv(serverConfig.ServerParam)
	if err = serverConfig.ServerParam.Validate(); err != nil {
		return nil, fmt.Errorf("invalid param file %s: %w", serverConfig.GetCompleteParamFilename(), err)
	}

	// Open state file
	serverConfig.ServerState, err = NewServerState(serverConfig.GetCompleteStateFilename())
	if err != nil {
		return nil, err
	}

	return serverConfig, nil
}

func (sc *ServerConfig) GetCompleteParamFilename() string {
	return filepath.Join(sc.ConfigDir, paramFilename)
}

func (sc *ServerConfig) GetCompleteStateFilename() string {
	return filepath.Join(sc.ConfigDir, stateFilename)
}

func (sc *ServerConfig) GetCompleteScheduleFilename() string {
	return filepath.Join(sc.ConfigDir, scheduleFilename)
}

func (sc *ServerConfig) GetCompleteDatabaseFilename() string {
	return filepath.Join(sc.ConfigDir, databaseFilename)
}

func (sc *ServerConfig) GetCompleteMediaRoot() string {
	if sc.MediaRoot == "" {
		return filepath.Join(sc.ConfigDir, mediaFolder)
	}
	if filepath.IsAbs(sc.MediaRoot) {
		return sc.MediaRoot
	}
	return filepath.Join(sc.ConfigDir, sc.MediaRoot)
}

// GetCompleteLogFilename returns "" when file logging is disabled.
func (sc *ServerConfig) GetCompleteLogFilename() string {
	if sc.LogParam.File == "" || filepath.IsAbs(sc.LogParam.File) {
		return sc.LogParam.File
	}
	return filepath.Join(sc.ConfigDir, sc.LogParam.File)
}

func (sc *ServerConfig) GetCompleteCertFilename() string {
	return filepath.Join(sc.ConfigDir, "cert.pem")
}

func (sc *ServerConfig) GetCompleteKeyFilename() string {
	return filepath.Join(sc.ConfigDir, "key.pem")
}

func (sc *ServerConfig) SaveParam() error {
	logrus.Debugf("Save param file: %s", sc.GetCompleteParamFilename())
	rawConfig, err := yaml.Marshal(sc.ServerParam)
	if err != nil {
		return fmt.Errorf("unable to serialize param file: %w", err)
	}
	err = os.WriteFile(sc.GetCompleteParamFilename(), rawConfig, 0660)
	if err != nil {
		return fmt.Errorf("unable to save param file: %w", err)
	}
	return nil
}
