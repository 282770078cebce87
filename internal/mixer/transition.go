package mixer

import (
	"fmt"
	"math"
	"time"

	"github.com/liuscraft/boombox/internal/loop"
)

const (
	TransitionNone = "none"
	TransitionFade = "fadeTo"

	// fadeInterval 淡入淡出的步进间隔
	fadeInterval = 50 * time.Millisecond
)

// transition 正在进行的音量插值，由所属 sound 持有；同一声音最多一个
type transition struct {
	strategy string
	target   int
	task     loop.Task
}

type strategyFunc func(te *transitionEngine, s *sound, target int, d time.Duration, onComplete func(*sound))

var strategies = map[string]strategyFunc{
	TransitionNone: (*transitionEngine).instant,
	TransitionFade: (*transitionEngine).fadeTo,
}

// resolveTransition 空名称为 fadeTo，未知名称返回 ErrInvalidArgument
func resolveTransition(name string) (string, error) {
	if name == "" {
		return TransitionFade, nil
	}
	if _, ok := strategies[name]; !ok {
		return "", fmt.Errorf("%w: unknown transition %q", ErrInvalidArgument, name)
	}
	return name, nil
}

type transitionEngine struct {
	sched loop.Scheduler
}

// run 以 name 指定的策略把 s 的音量过渡到 target。name 必须已经过 resolveTransition 校验
func (te *transitionEngine) run(name string, s *sound, target int, d time.Duration, onComplete func(*sound)) {
	strategies[name](te, s, target, d, onComplete)
}

func (te *transitionEngine) instant(s *sound, target int, _ time.Duration, onComplete func(*sound)) {
	s.cancelTransition()
	s.setVolume(target)
	if onComplete != nil {
		onComplete(s)
	}
}

// fadeTo 每 50ms 前进 ceil(50*(target-current)/ms)，沿步进方向到达或越过目标时取目标值并结束。
// 过渡期间音量被直接修改（SetVolume）时同样在下一次 tick 收敛到目标。
func (te *transitionEngine) fadeTo(s *sound, target int, d time.Duration, onComplete func(*sound)) {
	if d <= 0 {
		te.instant(s, target, d, onComplete)
		return
	}
	s.cancelTransition()

	ms := float64(d) / float64(time.Millisecond)
	step := int(math.Ceil(50 * float64(target-s.volume) / ms))
	if step == 0 && target != s.volume {
		// ceil 把较小的负步长取整为 0，否则永远到不了目标
		step = -1
		if target > s.volume {
			step = 1
		}
	}

	t := &transition{strategy: TransitionFade, target: target}
	t.task = te.sched.Every(fadeInterval, func() {
		if s.transition != t {
			return
		}
		next := s.volume + step
		if step == 0 || (step > 0 && next >= target) || (step < 0 && next <= target) {
			s.setVolume(target)
			t.task.Stop()
			s.transition = nil
			if onComplete != nil {
				onComplete(s)
			}
			return
		}
		s.setVolume(next)
	})
	s.transition = t
}
