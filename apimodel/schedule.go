package apimodel

import (
	"fmt"
	"strings"
	"time"
)

const ScheduleTimeLayout = "15:04"

type TriggerName string

const (
	TriggerPowerOn  TriggerName = "power_on"
	TriggerPowerOff TriggerName = "power_off"
)

type Trigger struct {
	Enabled bool    `json:"enabled"`
	Time    *string `json:"time"`
}

// Clock returns the hour and minute of the trigger, ok is false when the
// trigger has no usable time.
func (t Trigger) Clock() (hour int, minute int, ok bool) {
	if t.Time == nil {
		return 0, 0, false
	}
	parsed, err := time.Parse(ScheduleTimeLayout, *t.Time)
	if err != nil {
		return 0, 0, false
	}
	return parsed.Hour(), parsed.Minute(), true
}

type Schedule struct {
	PowerOn  Trigger `json:"power_on"`
	PowerOff Trigger `json:"power_off"`
}

func DefaultSchedule() Schedule {
	return Schedule{}
}

func (s Schedule) Trigger(name TriggerName) Trigger {
	if name == TriggerPowerOff {
		return s.PowerOff
	}
	return s.PowerOn
}

// Normalize trims times, turns blank times into null and rejects anything that
// is not a 24-hour HH:MM value.
func (s Schedule) Normalize() (Schedule, error) {
	powerOn, err := normalizeTrigger(s.PowerOn, TriggerPowerOn)
	if err != nil {
		return Schedule{}, err
	}
	powerOff, err := normalizeTrigger(s.PowerOff, TriggerPowerOff)
	if err != nil {
		return Schedule{}, err
	}
	return Schedule{PowerOn: powerOn, PowerOff: powerOff}, nil
}

func normalizeTrigger(t Trigger, name TriggerName) (Trigger, error) {
	normalized := Trigger{Enabled: t.Enabled}
	if t.Time == nil {
		return normalized, nil
	}
	value := strings.TrimSpace(*t.Time)
	if value == "" {
		return normalized, nil
	}
	parsed, err := time.Parse(ScheduleTimeLayout, value)
	if err != nil {
		return Trigger{}, fmt.Errorf("%s.%w", name, ErrInvalidScheduleTime)
	}
	// "7:05" parses too, store the canonical form
	value = parsed.Format(ScheduleTimeLayout)
	normalized.Time = &value
	return normalized, nil
}
