// Package looptest 提供确定性的 loop.Scheduler，供测试手动推进时间。
package looptest

import (
	"time"

	"github.com/liuscraft/boombox/internal/loop"
)

var _ loop.Scheduler = (*Manual)(nil)

// Manual 在调用方 goroutine 上同步执行所有函数，周期任务只在 Advance 时触发
type Manual struct {
	now   time.Duration
	seq   int
	tasks []*task
}

type task struct {
	seq      int
	interval time.Duration
	next     time.Duration
	fn       func()
	stopped  bool
}

func (t *task) Stop() {
	t.stopped = true
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Post(fn func()) {
	if fn != nil {
		fn()
	}
}

func (m *Manual) Do(fn func()) {
	fn()
}

func (m *Manual) Every(interval time.Duration, fn func()) loop.Task {
	if interval <= 0 {
		interval = time.Millisecond
	}
	m.seq++
	t := &task{
		seq:      m.seq,
		interval: interval,
		next:     m.now + interval,
		fn:       fn,
	}
	m.tasks = append(m.tasks, t)
	return t
}

// Now 返回自创建以来经过的虚拟时间
func (m *Manual) Now() time.Duration {
	return m.now
}

// Advance 推进虚拟时间，按到期时间（相同则按创建顺序）依次触发周期任务
func (m *Manual) Advance(d time.Duration) {
	end := m.now + d
	for {
		next := m.nextDue(end)
		if next == nil {
			break
		}
		m.now = next.next
		next.next += next.interval
		next.fn()
	}
	m.now = end
	m.compact()
}

// Active 返回尚未停止的周期任务数量
func (m *Manual) Active() int {
	n := 0
	for _, t := range m.tasks {
		if !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(end time.Duration) *task {
	var best *task
	for _, t := range m.tasks {
		if t.stopped || t.next > end {
			continue
		}
		if best == nil || t.next < best.next || (t.next == best.next && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (m *Manual) compact() {
	live := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.stopped {
			live = append(live, t)
		}
	}
	for i := len(live); i < len(m.tasks); i++ {
		m.tasks[i] = nil
	}
	m.tasks = live
}
