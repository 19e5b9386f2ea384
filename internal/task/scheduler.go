package task

import (
	"sort"
	"sync"
	"time"
)

// Task is a handle to one scheduled callback.
type Task interface {
	// Cancel prevents the callback from running and reports whether it was still pending.
	Cancel() bool
}

// Scheduler runs callbacks once after a delay.
type Scheduler interface {
	AfterFunc(delay time.Duration, callback func()) Task
}

type noopTask struct{}

func (noopTask) Cancel() bool {
	return false
}

// Timers schedules callbacks on the wall clock and cancels everything still pending on Stop.
type Timers struct {
	controlMutex sync.Mutex
	pending      map[*timerTask]struct{}
	stopped      bool
}

type timerTask struct {
	owner *Timers
	timer *time.Timer
}

func NewTimers() *Timers {
	return &Timers{pending: make(map[*timerTask]struct{})}
}

func (timers *Timers) AfterFunc(delay time.Duration, callback func()) Task {
	if timers == nil || callback == nil {
		return noopTask{}
	}
	timers.controlMutex.Lock()
	defer timers.controlMutex.Unlock()
	if timers.stopped {
		return noopTask{}
	}

	scheduled := &timerTask{owner: timers}
	scheduled.timer = time.AfterFunc(delay, func() {
		if !timers.release(scheduled) {
			return
		}
		callback()
	})
	timers.pending[scheduled] = struct{}{}
	return scheduled
}

// Pending reports how many callbacks have neither fired nor been cancelled.
func (timers *Timers) Pending() int {
	if timers == nil {
		return 0
	}
	timers.controlMutex.Lock()
	defer timers.controlMutex.Unlock()
	return len(timers.pending)
}

// Stop cancels pending callbacks; later AfterFunc calls are ignored.
func (timers *Timers) Stop() {
	if timers == nil {
		return
	}
	timers.controlMutex.Lock()
	pending := timers.pending
	timers.pending = make(map[*timerTask]struct{})
	timers.stopped = true
	timers.controlMutex.Unlock()

	for scheduled := range pending {
		scheduled.timer.Stop()
	}
}

func (timers *Timers) release(scheduled *timerTask) bool {
	timers.controlMutex.Lock()
	defer timers.controlMutex.Unlock()
	if _, found := timers.pending[scheduled]; !found {
		return false
	}
	delete(timers.pending, scheduled)
	return true
}

func (scheduled *timerTask) Cancel() bool {
	if !scheduled.owner.release(scheduled) {
		return false
	}
	scheduled.timer.Stop()
	return true
}

// Pending describes a deferred callback that has not run yet.
type Pending struct {
	Delay time.Duration
	Run   func()
}

// Queue holds callbacks until the owner advances its clock or drains it. Nothing runs on
// its own, which keeps rendering deterministic.
type Queue struct {
	controlMutex sync.Mutex
	now          time.Duration
	sequence     int
	entries      []*queueEntry
}

type queueEntry struct {
	owner    *Queue
	due      time.Duration
	delay    time.Duration
	sequence int
	callback func()
}

func NewQueue() *Queue {
	return &Queue{}
}

func (queue *Queue) AfterFunc(delay time.Duration, callback func()) Task {
	if queue == nil || callback == nil {
		return noopTask{}
	}
	if delay < 0 {
		delay = 0
	}
	queue.controlMutex.Lock()
	defer queue.controlMutex.Unlock()
	queue.sequence++
	entry := &queueEntry{
		owner:    queue,
		due:      queue.now + delay,
		delay:    delay,
		sequence: queue.sequence,
		callback: callback,
	}
	queue.entries = append(queue.entries, entry)
	return entry
}

// Len reports the number of callbacks waiting in the queue.
func (queue *Queue) Len() int {
	if queue == nil {
		return 0
	}
	queue.controlMutex.Lock()
	defer queue.controlMutex.Unlock()
	return len(queue.entries)
}

// Advance moves the queue clock forward and runs every callback that became due, in due
// order. Callbacks scheduled while advancing run too when they fall inside the window.
func (queue *Queue) Advance(elapsed time.Duration) {
	if queue == nil {
		return
	}
	queue.controlMutex.Lock()
	target := queue.now + elapsed
	queue.controlMutex.Unlock()

	for {
		entry := queue.popDue(target)
		if entry == nil {
			break
		}
		entry.callback()
	}

	queue.controlMutex.Lock()
	queue.now = target
	queue.controlMutex.Unlock()
}

// Drain removes every pending callback without running it, ordered by due time, with the
// delay measured from the moment each one was scheduled.
func (queue *Queue) Drain() []Pending {
	if queue == nil {
		return nil
	}
	queue.controlMutex.Lock()
	entries := queue.entries
	queue.entries = nil
	queue.controlMutex.Unlock()

	sortEntries(entries)
	drained := make([]Pending, 0, len(entries))
	for _, entry := range entries {
		drained = append(drained, Pending{Delay: entry.delay, Run: entry.callback})
	}
	return drained
}

func (queue *Queue) popDue(target time.Duration) *queueEntry {
	queue.controlMutex.Lock()
	defer queue.controlMutex.Unlock()
	sortEntries(queue.entries)
	if len(queue.entries) == 0 || queue.entries[0].due > target {
		return nil
	}
	entry := queue.entries[0]
	queue.entries = queue.entries[1:]
	if entry.due > queue.now {
		queue.now = entry.due
	}
	return entry
}

func (queue *Queue) remove(target *queueEntry) bool {
	queue.controlMutex.Lock()
	defer queue.controlMutex.Unlock()
	for index, entry := range queue.entries {
		if entry == target {
			queue.entries = append(queue.entries[:index], queue.entries[index+1:]...)
			return true
		}
	}
	return false
}

func (entry *queueEntry) Cancel() bool {
	return entry.owner.remove(entry)
}

func sortEntries(entries []*queueEntry) {
	sort.SliceStable(entries, func(left, right int) bool {
		if entries[left].due != entries[right].due {
			return entries[left].due < entries[right].due
		}
		return entries[left].sequence < entries[right].sequence
	})
}
