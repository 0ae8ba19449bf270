package device

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ScheduleWatcher calls onChange whenever the schedule file is written or
// replaced, including by hand edits outside the API.
type ScheduleWatcher struct {
	lock     sync.Mutex
	filename string
	onChange func()

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func NewScheduleWatcher(filename string, onChange func()) *ScheduleWatcher {
	return &ScheduleWatcher{
		filename: filepath.Clean(filename),
		onChange: onChange,
	}
}

func (d *ScheduleWatcher) Start() error {
	logrus.Infof("Start schedule watcher device")

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create schedule watcher: %w", err)
	}
	// the file is replaced by rename, so watch its folder
	if err = watcher.Add(filepath.Dir(d.filename)); err != nil {
		watcher.Close()
		return fmt.Errorf("unable to watch %s: %w", filepath.Dir(d.filename), err)
	}
	d.watcher = watcher
	d.done = make(chan struct{})

	go d.loop(watcher, d.done)
	return nil
}

func (d *ScheduleWatcher) loop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != d.filename {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				logrus.Debugf("Schedule file changed (%s)", ev.Op)
				d.onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("Schedule watcher error: %v", err)
		}
	}
}

func (d *ScheduleWatcher) Stop() {
	logrus.Infof("Stop schedule watcher device")

	d.lock.Lock()
	watcher, done := d.watcher, d.done
	d.watcher = nil
	d.lock.Unlock()

	if watcher == nil {
		return
	}
	watcher.Close()
	<-done
}
