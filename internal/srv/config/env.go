package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// applyEnv overrides parameters with environment variables. A .env file in
// the working directory is loaded first, it never overrides real variables.
func applyEnv(p *ServerParam) {
	if err := godotenv.Load(); err == nil {
		logrus.Debugf("Environment completed with .env file")
	}

	p.MediaRoot = getEnv("MEDIA_ROOT", p.MediaRoot)
	p.ApiParam.Port = getEnvAsInt("HTTP_PORT", p.ApiParam.Port)
	p.AutoResume = getEnvAsBool("AUTO_START_LAST", p.AutoResume)

	p.PlayerParam.Command = getEnv("MPV_PATH", p.PlayerParam.Command)
	if extraArgs, exists := os.LookupEnv("MPV_EXTRA_ARGS"); exists {
		p.PlayerParam.ExtraArgs = strings.Fields(extraArgs)
	}

	p.ProjectorParam.Cec.Tool = getEnv("PROJECTOR_CEC_TOOL", p.ProjectorParam.Cec.Tool)
	p.ProjectorParam.Cec.Device = getEnv("PROJECTOR_CEC_DEVICE", p.ProjectorParam.Cec.Device)
	p.ProjectorParam.Cec.LogicalAddress = getEnv("PROJECTOR_CEC_LOGICAL_ADDR", p.ProjectorParam.Cec.LogicalAddress)

	p.DisplayParam.SourceUrl = getEnv("PLAYLIST_SOURCE_URL", p.DisplayParam.SourceUrl)
	p.DisplayParam.PollIntervalMs = getEnvAsInt("PLAYLIST_POLL_INTERVAL_MS", p.DisplayParam.PollIntervalMs)
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int64) int64 {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		logrus.Warnf("Ignore %s: %q is not an integer", key, strValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	strValue := strings.ToLower(getEnv(key, ""))
	switch strValue {
	case "":
		return defaultValue
	case "yes", "y", "on":
		return true
	case "no", "n", "off":
		return false
	}
	value, err := strconv.ParseBool(strValue)
	if err != nil {
		logrus.Warnf("Ignore %s: %q is not a boolean", key, strValue)
		return defaultValue
	}
	return value
}
