package mixer

import (
	"errors"
	"testing"
	"time"

	"github.com/liuscraft/boombox/internal/loop/looptest"
)

func newTestSound(id string, volume int) *sound {
	return &sound{
		id:     id,
		handle: &fakeSound{engine: newFakeEngine(), id: id, volume: volume},
		volume: volume,
		state:  NewStateMachine(),
	}
}

func TestFadeToCompletes(t *testing.T) {
	tests := []struct {
		name     string
		from     int
		to       int
		duration time.Duration
		doneAt   time.Duration
	}{
		{"fade in", 0, 100, 500 * time.Millisecond, 500 * time.Millisecond},
		{"fade out", 100, 0, 500 * time.Millisecond, 500 * time.Millisecond},
		{"overshoot snaps to target", 0, 33, 500 * time.Millisecond, 450 * time.Millisecond},
		{"already at target", 50, 50, 500 * time.Millisecond, 50 * time.Millisecond},
		{"tiny negative step", 100, 99, 10 * time.Second, 50 * time.Millisecond},
		{"zero duration", 20, 80, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := looptest.NewManual()
			te := &transitionEngine{sched: sched}
			s := newTestSound("a", tt.from)

			calls := 0
			te.run(TransitionFade, s, tt.to, tt.duration, func(done *sound) {
				if done != s {
					t.Errorf("callback received the wrong sound")
				}
				calls++
			})

			if tt.doneAt > 0 {
				sched.Advance(tt.doneAt - time.Millisecond)
				if calls != 0 {
					t.Fatalf("completed too early (volume %d)", s.volume)
				}
				sched.Advance(time.Millisecond)
			}
			if calls != 1 {
				t.Fatalf("expected completion at %v, calls=%d volume=%d", tt.doneAt, calls, s.volume)
			}
			if s.volume != tt.to {
				t.Fatalf("expected final volume %d, got %d", tt.to, s.volume)
			}
			if got := s.handle.(*fakeSound).volume; got != tt.to {
				t.Fatalf("engine volume = %d, want %d", got, tt.to)
			}

			sched.Advance(2 * time.Second)
			if calls != 1 {
				t.Fatalf("callback fired %d times", calls)
			}
			if sched.Active() != 0 || s.transition != nil {
				t.Fatal("transition still active after completion")
			}
		})
	}
}

func TestFadeToSteps(t *testing.T) {
	sched := looptest.NewManual()
	te := &transitionEngine{sched: sched}
	s := newTestSound("a", 0)

	te.run(TransitionFade, s, 100, 500*time.Millisecond, nil)
	want := []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	for i, v := range want {
		sched.Advance(fadeInterval)
		if s.volume != v {
			t.Fatalf("tick %d: expected volume %d, got %d", i+1, v, s.volume)
		}
	}
}

func TestNewTransitionCancelsPrevious(t *testing.T) {
	sched := looptest.NewManual()
	te := &transitionEngine{sched: sched}
	s := newTestSound("a", 0)

	first, second := 0, 0
	te.run(TransitionFade, s, 100, 500*time.Millisecond, func(*sound) { first++ })
	sched.Advance(200 * time.Millisecond)
	if s.volume != 40 {
		t.Fatalf("expected volume 40 mid-fade, got %d", s.volume)
	}

	te.run(TransitionFade, s, 0, 200*time.Millisecond, func(*sound) { second++ })
	sched.Advance(2 * time.Second)

	if first != 0 {
		t.Fatalf("replaced fade completed %d times", first)
	}
	if second != 1 {
		t.Fatalf("expected second fade to complete once, got %d", second)
	}
	if s.volume != 0 {
		t.Fatalf("expected volume 0, got %d", s.volume)
	}
	if sched.Active() != 0 {
		t.Fatalf("expected no active tasks, got %d", sched.Active())
	}
}

func TestInstantCancelsFade(t *testing.T) {
	sched := looptest.NewManual()
	te := &transitionEngine{sched: sched}
	s := newTestSound("a", 0)

	faded := 0
	te.run(TransitionFade, s, 100, 500*time.Millisecond, func(*sound) { faded++ })
	sched.Advance(100 * time.Millisecond)

	instant := 0
	te.run(TransitionNone, s, 70, 0, func(*sound) { instant++ })
	if instant != 1 || s.volume != 70 {
		t.Fatalf("expected instant set to 70 with callback, got volume=%d calls=%d", s.volume, instant)
	}

	sched.Advance(time.Second)
	if faded != 0 || s.volume != 70 {
		t.Fatalf("canceled fade kept running: volume=%d calls=%d", s.volume, faded)
	}
}

func TestResolveTransition(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", TransitionFade, false},
		{"fadeTo", TransitionFade, false},
		{"none", TransitionNone, false},
		{"wobble", "", true},
	}
	for _, tt := range tests {
		got, err := resolveTransition(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("resolveTransition(%q) error = %v, want ErrInvalidArgument", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("resolveTransition(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestStateMachine(t *testing.T) {
	tests := []struct {
		name          string
		from          State
		to            State
		shouldSucceed bool
	}{
		{"Unregistered to Idle", StateUnregistered, StateIdle, true},
		{"Idle to Playing", StateIdle, StatePlaying, true},
		{"Playing to Idle", StatePlaying, StateIdle, true},
		{"Unregistered to Playing", StateUnregistered, StatePlaying, false},
		{"Idle to Unregistered", StateIdle, StateUnregistered, false},
		{"Playing to Playing", StatePlaying, StatePlaying, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			sm.currentState = tt.from
			result := sm.Transition(tt.to)
			if result != tt.shouldSucceed {
				t.Errorf("Transition(%v) = %v, want %v", tt.to, result, tt.shouldSucceed)
			}
			if result && sm.Current() != tt.to {
				t.Errorf("State after transition = %v, want %v", sm.Current(), tt.to)
			}
		})
	}
}
