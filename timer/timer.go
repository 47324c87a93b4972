// timer/timer.go
package timer

import (
	"container/heap"
	"sync"
	"time"
)

type TimerTask struct {
	Id       int64
	Execute  time.Time
	Interval time.Duration
	Callback func()
	index    int
}

type TimerQueue []*TimerTask

func (q TimerQueue) Len() int { return len(q) }

func (q TimerQueue) Less(i, j int) bool {
	if q[i].Execute.Equal(q[j].Execute) {
		return q[i].Id < q[j].Id
	}
	return q[i].Execute.Before(q[j].Execute)
}

func (q TimerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *TimerQueue) Push(x interface{}) {
	n := len(*q)
	task := x.(*TimerTask)
	task.index = n
	*q = append(*q, task)
}

func (q *TimerQueue) Pop() interface{} {
	old := *q
	n := len(old)
	task := old[n-1]
	task.index = -1
	*q = old[0 : n-1]
	return task
}

// TimerManager keeps delayed and repeating callbacks. It never starts goroutines: the owner calls
// Advance from its own loop and due callbacks run synchronously on that goroutine.
type TimerManager struct {
	queue  TimerQueue
	mutex  sync.Mutex
	nextId int64
	clock  Clock
}

func NewTimerManager(clock Clock) *TimerManager {
	if clock == nil {
		clock = SystemClock{}
	}
	manager := &TimerManager{
		queue:  make(TimerQueue, 0),
		nextId: 1,
		clock:  clock,
	}
	heap.Init(&manager.queue)
	return manager
}

// AddTimer schedules callback after delay, then every interval if interval > 0.
func (m *TimerManager) AddTimer(delay time.Duration, interval time.Duration, callback func()) int64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	task := &TimerTask{
		Id:       m.nextId,
		Execute:  m.clock.Now().Add(delay),
		Interval: interval,
		Callback: callback,
	}
	m.nextId++

	heap.Push(&m.queue, task)
	return task.Id
}

// RemoveTimer cancels a pending task. Unknown ids are ignored.
func (m *TimerManager) RemoveTimer(timerId int64) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for i, task := range m.queue {
		if task.Id == timerId {
			heap.Remove(&m.queue, i)
			return true
		}
	}
	return false
}

func (m *TimerManager) Pending() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.queue.Len()
}

// Advance runs every task due at the clock's current time and returns how many fired.
func (m *TimerManager) Advance() int {
	now := m.clock.Now()
	fired := 0
	for {
		task := m.popDue(now)
		if task == nil {
			return fired
		}
		fired++
		task.Callback()
	}
}

func (m *TimerManager) popDue(now time.Time) *TimerTask {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.queue.Len() == 0 {
		return nil
	}
	task := m.queue[0]
	if task.Execute.After(now) {
		return nil
	}
	heap.Pop(&m.queue)

	// Repeating tasks go back in before the callback runs so the callback can cancel them.
	if task.Interval > 0 {
		task.Execute = task.Execute.Add(task.Interval)
		heap.Push(&m.queue, task)
	}
	return task
}

// Countdown is a restartable repeating timer. Every Start or Stop bumps the generation so a
// callback belonging to an earlier run never fires into the current one.
type Countdown struct {
	manager *TimerManager
	id      int64
	gen     uint64
}

func NewCountdown(manager *TimerManager) *Countdown {
	return &Countdown{manager: manager}
}

func (c *Countdown) Start(interval time.Duration, tick func()) {
	c.Stop()
	gen := c.gen
	c.id = c.manager.AddTimer(interval, interval, func() {
		if gen != c.gen {
			return
		}
		tick()
	})
}

func (c *Countdown) Stop() {
	if c.id != 0 {
		c.manager.RemoveTimer(c.id)
		c.id = 0
	}
	c.gen++
}

func (c *Countdown) Running() bool { return c.id != 0 }

func (c *Countdown) Generation() uint64 { return c.gen }
