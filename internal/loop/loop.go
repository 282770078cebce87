// Package loop 提供单线程事件循环：所有 mixer 状态只在循环 goroutine 上被访问。
package loop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/liuscraft/boombox/internal/logging"
)

// Scheduler 是 mixer 依赖的调度接口，生产环境使用 Loop，测试使用 looptest.Manual
type Scheduler interface {
	// Post 把 fn 放入循环队列，立即返回，可在任意 goroutine（包括音频回调）中调用
	Post(fn func())
	// Do 在循环上执行 fn 并等待其完成，禁止在循环内部调用
	Do(fn func())
	// Every 每隔 interval 在循环上执行一次 fn，直到返回的 Task 被 Stop
	Every(interval time.Duration, fn func()) Task
}

// Task 可取消的周期任务
type Task interface {
	Stop()
}

// Loop 串行执行提交的函数
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

func New() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) Do(fn func()) {
	finished := make(chan struct{})
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		logging.Warnf("Loop: Do called after close, dropping call")
		return
	}

	l.Post(func() {
		defer close(finished)
		fn()
	})

	select {
	case <-finished:
	case <-l.done:
	}
}

func (l *Loop) Every(interval time.Duration, fn func()) Task {
	t := &ticker{
		ticker: time.NewTicker(interval),
		quit:   make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-t.ticker.C:
				l.Post(func() {
					// 已排队的 tick 在 Stop 之后也不能再执行
					if t.stopped.Load() {
						return
					}
					fn()
				})
			case <-t.quit:
				return
			case <-l.done:
				return
			}
		}
	}()
	return t
}

// Close 停止循环，丢弃尚未执行的函数
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.queue = nil
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
}

func (l *Loop) run() {
	defer l.wg.Done()
	for {
		select {
		case <-l.wake:
		case <-l.done:
			return
		}

		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()

			fn()
		}
	}
}

type ticker struct {
	ticker  *time.Ticker
	quit    chan struct{}
	stopped atomic.Bool
	once    sync.Once
}

func (t *ticker) Stop() {
	t.once.Do(func() {
		t.stopped.Store(true)
		t.ticker.Stop()
		close(t.quit)
	})
}
