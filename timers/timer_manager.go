package timers

import (
	"time"

	"github.com/RussellLuo/timingwheel"
)

// TimerManager schedules deferred callbacks on a hashed timing wheel.
// Callbacks fire on the wheel's goroutine and must re-validate whatever
// state they act on; scheduled tasks are never cancelled.
type TimerManager struct {
	wheel *timingwheel.TimingWheel
}

func NewTimerManager(wheelSize int64) *TimerManager {
	return &TimerManager{
		wheel: timingwheel.NewTimingWheel(time.Second, wheelSize),
	}
}

func (m *TimerManager) ScheduleAfter(delay time.Duration, task func()) {
	m.wheel.AfterFunc(delay, task)
}

func (m *TimerManager) ScheduleAt(at time.Time, task func()) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	m.wheel.AfterFunc(delay, task)
}

func (m *TimerManager) Start() {
	m.wheel.Start()
}

func (m *TimerManager) Stop() {
	m.wheel.Stop()
}
