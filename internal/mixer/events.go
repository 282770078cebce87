package mixer

import (
	"sync"
	"time"
)

// EventType 事件类型
type EventType int

const (
	EventSoundStarted EventType = iota
	EventSoundReleased
	EventChannelVolumeChanged
	EventEngineReady
)

func (t EventType) String() string {
	switch t {
	case EventSoundStarted:
		return "soundStarted"
	case EventSoundReleased:
		return "soundReleased"
	case EventChannelVolumeChanged:
		return "channelVolumeChanged"
	case EventEngineReady:
		return "engineReady"
	default:
		return "unknown"
	}
}

// Event mixer 状态变化通知
type Event struct {
	Type      EventType
	Channel   string
	Sound     string
	Volume    int
	Timestamp time.Time
}

// EventHandler 事件处理器
type EventHandler func(event Event)

// EventBus 事件总线。处理器在总线自己的分发 goroutine 上按发布顺序依次执行，不会阻塞事件循环
type EventBus interface {
	Publish(event Event)
	Subscribe(eventType EventType, handler EventHandler)
	// Close 停止分发，尚未送达的事件被丢弃
	Close()
}

type eventBus struct {
	subscribers map[EventType][]EventHandler
	mu          sync.Mutex
	queue       []Event
	wake        chan struct{}
	closeCh     chan struct{}
	started     bool
	closed      bool
}

func NewEventBus() EventBus {
	return &eventBus{
		subscribers: make(map[EventType][]EventHandler),
		wake:        make(chan struct{}, 1),
		closeCh:     make(chan struct{}),
	}
}

func (eb *eventBus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	eb.mu.Lock()
	if eb.closed || len(eb.subscribers[event.Type]) == 0 {
		eb.mu.Unlock()
		return
	}
	eb.queue = append(eb.queue, event)
	eb.mu.Unlock()

	select {
	case eb.wake <- struct{}{}:
	default:
	}
}

func (eb *eventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
	if !eb.started {
		eb.started = true
		go eb.dispatch()
	}
}

func (eb *eventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return
	}
	eb.closed = true
	eb.queue = nil
	close(eb.closeCh)
}

func (eb *eventBus) dispatch() {
	for {
		select {
		case <-eb.wake:
		case <-eb.closeCh:
			return
		}
		for {
			eb.mu.Lock()
			if eb.closed || len(eb.queue) == 0 {
				eb.mu.Unlock()
				break
			}
			event := eb.queue[0]
			eb.queue = eb.queue[1:]
			handlers := eb.subscribers[event.Type]
			eb.mu.Unlock()

			for _, handler := range handlers {
				handler(event)
			}
		}
	}
}
