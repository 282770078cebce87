package mixer

import (
	"fmt"
	"strings"
)

// command 引擎就绪前缓存的调用
type command interface {
	apply(m *Mixer) error
	String() string
}

type addCommand struct {
	id  string
	url string
}

func (c addCommand) apply(m *Mixer) error {
	return m.add(c.id, c.url)
}

func (c addCommand) String() string {
	return fmt.Sprintf("add(%s)", c.id)
}

// playCommand 保留原始参数，重放时与就绪后的调用完全一致
type playCommand struct {
	channel string
	ids     []string
	params  PlayParams
}

func (c playCommand) apply(m *Mixer) error {
	return m.play(c.channel, c.ids, c.params)
}

func (c playCommand) String() string {
	return fmt.Sprintf("play(%s, [%s])", c.channel, strings.Join(c.ids, ","))
}

// readinessQueue FIFO，只在引擎就绪时被取出一次
type readinessQueue struct {
	commands []command
}

func (q *readinessQueue) enqueue(c command) {
	q.commands = append(q.commands, c)
}

func (q *readinessQueue) drain() []command {
	out := q.commands
	q.commands = nil
	return out
}

func (q *readinessQueue) len() int {
	return len(q.commands)
}
