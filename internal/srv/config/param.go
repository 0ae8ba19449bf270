package config

import (
	_ "embed"
	"fmt"
	"time"
)

//go:embed param_default.yaml
var ParamDefaultFile []byte

type ServerParam struct {
	MediaRoot      string         `yaml:"media_root"`
	ApiParam       ApiParam       `yaml:"api"`
	DisplayParam   DisplayParam   `yaml:"display"`
	PlayerParam    PlayerParam    `yaml:"player"`
	ProjectorParam ProjectorParam `yaml:"projector"`
	AutoResume     bool           `yaml:"auto_resume"`
	LogParam       LogParam       `yaml:"log"`
}

type ApiParam struct {
	Port int64 `yaml:"port"`
	Tls  bool  `yaml:"tls"`
}

type DisplayParam struct {
	Enabled           bool   `yaml:"enabled"`
	SourceUrl         string `yaml:"source_url"`
	PollIntervalMs    int64  `yaml:"poll_interval_ms"`
	FallbackDurationS int64  `yaml:"fallback_duration_s"`
	RetryDelayS       int64  `yaml:"retry_delay_s"`
}

func (p DisplayParam) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

func (p DisplayParam) FallbackDuration() time.Duration {
	return time.Duration(p.FallbackDurationS) * time.Second
}

func (p DisplayParam) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayS) * time.Second
}

type PlayerParam struct {
	Command       string   `yaml:"command"`
	ExtraArgs     []string `yaml:"extra_args"`
	GracePeriodMs int64    `yaml:"grace_period_ms"`
}

func (p PlayerParam) GracePeriod() time.Duration {
	return time.Duration(p.GracePeriodMs) * time.Millisecond
}

type ProjectorTransport string

const (
	CecTransport  ProjectorTransport = "cec"
	GpioTransport ProjectorTransport = "gpio"
)

type ProjectorParam struct {
	Transport     ProjectorTransport `yaml:"transport"`
	TickIntervalS int64              `yaml:"tick_interval_s"`
	WatchSchedule bool               `yaml:"watch_schedule"`
	Cec           CecParam           `yaml:"cec"`
	Gpio          GpioParam          `yaml:"gpio"`
}

func (p ProjectorParam) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalS) * time.Second
}

type CecParam struct {
	Tool           string `yaml:"tool"`
	Device         string `yaml:"device"`
	LogicalAddress string `yaml:"logical_address"`
}

type GpioParam struct {
	Pin       string `yaml:"pin"`
	ActiveLow bool   `yaml:"active_low"`
}

type LogParam struct {
	File       string `yaml:"file"`
	MaxSizeMb  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Validate rejects parameters the server cannot run with.
func (p *ServerParam) Validate() error {
	if p.ApiParam.Port <= 0 || p.ApiParam.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", p.ApiParam.Port)
	}
	if p.DisplayParam.PollIntervalMs <= 0 {
		return fmt.Errorf("display.poll_interval_ms must be positive, got %d", p.DisplayParam.PollIntervalMs)
	}
	if p.DisplayParam.FallbackDurationS <= 0 {
		return fmt.Errorf("display.fallback_duration_s must be positive, got %d", p.DisplayParam.FallbackDurationS)
	}
	if p.DisplayParam.RetryDelayS <= 0 {
		return fmt.Errorf("display.retry_delay_s must be positive, got %d", p.DisplayParam.RetryDelayS)
	}
	if p.PlayerParam.Command == "" {
		return fmt.Errorf("player.command is required")
	}
	if p.PlayerParam.GracePeriodMs <= 0 {
		return fmt.Errorf("player.grace_period_ms must be positive, got %d", p.PlayerParam.GracePeriodMs)
	}
	// a coarser tick could skip a whole matching minute
	if p.ProjectorParam.TickIntervalS < 1 || p.ProjectorParam.TickIntervalS > 30 {
		return fmt.Errorf("projector.tick_interval_s must be between 1 and 30, got %d", p.ProjectorParam.TickIntervalS)
	}
	switch p.ProjectorParam.Transport {
	case CecTransport:
		if p.ProjectorParam.Cec.Tool == "" {
			return fmt.Errorf("projector.cec.tool is required")
		}
	case GpioTransport:
		if p.ProjectorParam.Gpio.Pin == "" {
			return fmt.Errorf("projector.gpio.pin is required")
		}
	default:
		return fmt.Errorf("projector.transport must be %q or %q, got %q", CecTransport, GpioTransport, p.ProjectorParam.Transport)
	}
	return nil
}
