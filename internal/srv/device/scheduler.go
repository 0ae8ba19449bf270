package device

import (
	"context"
	"sync"
	"time"

	"github.com/jypelle/pishow/apimodel"
	"github.com/jypelle/pishow/internal/srv/clock"
	"github.com/jypelle/pishow/internal/srv/event"
	"github.com/sirupsen/logrus"
)

const firedMarkerLayout = "2006-01-02 15:04"

const powerCommandTimeout = 30 * time.Second

// maxTickInterval keeps at least two evaluations inside every minute.
const maxTickInterval = 30 * time.Second

type ScheduleReader interface {
	Read() (apimodel.Schedule, error)
}

// Scheduler powers the projector on and off at the times of the schedule.
//
// Each evaluation compares both triggers with the current minute. A trigger
// fires at most once per calendar day and minute: its fired-marker is recorded
// before the transport is invoked and is never cleared, even when the command
// fails.
type Scheduler struct {
	lock         sync.Mutex
	eventChannel chan event.SchedulerEvent

	clock        clock.Clock
	schedules    ScheduleReader
	transport    PowerTransport
	tickInterval time.Duration

	fired    map[apimodel.TriggerName]string
	timer    clock.Timer
	nextTick time.Time
	running  bool

	sendEvent bool
}

func NewScheduler(clk clock.Clock, schedules ScheduleReader, transport PowerTransport, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 || tickInterval > maxTickInterval {
		tickInterval = maxTickInterval
	}
	return &Scheduler{
		eventChannel: make(chan event.SchedulerEvent),
		clock:        clk,
		schedules:    schedules,
		transport:    transport,
		tickInterval: tickInterval,
		fired:        map[apimodel.TriggerName]string{},
		sendEvent:    true,
	}
}

func (d *Scheduler) Start() {
	logrus.Infof("Start scheduler device (tick every %s)", d.tickInterval)

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.running {
		return
	}
	d.running = true
	d.nextTick = d.clock.Now()
	d.arm(0)
}

func (d *Scheduler) StopSendingEvent() {
	logrus.Infof("Stop scheduler device")

	d.lock.Lock()
	defer d.lock.Unlock()

	d.running = false
	d.sendEvent = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Scheduler) EventChannel() chan event.SchedulerEvent {
	return d.eventChannel
}

func (d *Scheduler) arm(delay time.Duration) {
	d.timer = d.clock.AfterFunc(delay, d.tick)
}

// tick evaluates then arms the next tick on a fixed grid anchored at Start,
// so the time spent evaluating does not accumulate.
func (d *Scheduler) tick() {
	d.Evaluate(d.clock.Now())

	d.lock.Lock()
	defer d.lock.Unlock()
	if !d.running {
		return
	}
	now := d.clock.Now()
	next := d.nextTick.Add(d.tickInterval)
	if !next.After(now) {
		next = now.Add(d.tickInterval)
	}
	d.nextTick = next
	d.arm(next.Sub(now))
}

// Wake evaluates the schedule right away, used after a schedule change.
func (d *Scheduler) Wake() {
	go d.Evaluate(d.clock.Now())
}

// Evaluate fires every enabled trigger matching the minute of now. The
// schedule is read again on every call.
func (d *Scheduler) Evaluate(now time.Time) {
	schedule, err := d.schedules.Read()
	if err != nil {
		logrus.Warnf("Unable to read projector schedule: %v", err)
		return
	}

	for _, name := range []apimodel.TriggerName{apimodel.TriggerPowerOn, apimodel.TriggerPowerOff} {
		trigger := schedule.Trigger(name)
		if !trigger.Enabled {
			continue
		}
		hour, minute, ok := trigger.Clock()
		if !ok || hour != now.Hour() || minute != now.Minute() {
			continue
		}
		if !d.mark(name, now.Format(firedMarkerLayout)) {
			continue
		}
		d.fire(name)
	}
}

// mark records the fired-marker, false when the trigger already fired for it.
func (d *Scheduler) mark(name apimodel.TriggerName, marker string) bool {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.fired[name] == marker {
		return false
	}
	d.fired[name] = marker
	return true
}

// FiredMarker returns the last minute the trigger fired, "" if never.
func (d *Scheduler) FiredMarker(name apimodel.TriggerName) string {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.fired[name]
}

func (d *Scheduler) fire(name apimodel.TriggerName) {
	state := apimodel.PowerStateOn
	if name == apimodel.TriggerPowerOff {
		state = apimodel.PowerStateOff
	}
	logrus.Infof("Projector schedule: %s", name)

	ctx, cancel := context.WithTimeout(context.Background(), powerCommandTimeout)
	defer cancel()
	err := SetPower(ctx, d.transport, state)
	if err != nil {
		logrus.Errorf("Projector %s failed: %v", name, err)
	}
	d.send(event.SchedulerEventFiredData{Trigger: name, Err: err})
}

// Override powers the projector now, whatever the schedule says. Fired-markers
// are left untouched.
func (d *Scheduler) Override(ctx context.Context, state apimodel.PowerState) error {
	if !state.Valid() {
		return apimodel.ErrInvalidPowerState
	}
	logrus.Infof("Manual projector power %s", state)
	err := SetPower(ctx, d.transport, state)
	if err != nil {
		logrus.Errorf("Manual projector power %s failed: %v", state, err)
	}
	d.send(event.SchedulerEventOverrideData{State: state, Err: err})
	return err
}

func (d *Scheduler) send(data interface{}) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.sendEvent {
		go func() { d.eventChannel <- event.SchedulerEvent{Data: data} }()
	}
}
