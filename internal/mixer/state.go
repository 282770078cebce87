package mixer

import "slices"

// State 声音的生命周期状态
type State int

const (
	StateUnregistered State = iota
	StateIdle
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "Unregistered"
	case StateIdle:
		return "Idle"
	case StatePlaying:
		return "Playing"
	default:
		return "Unknown"
	}
}

var validTransitions = map[State][]State{
	StateUnregistered: {StateIdle},
	StateIdle:         {StatePlaying},
	StatePlaying:      {StateIdle},
}

// StateMachine 状态机
type StateMachine struct {
	currentState State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{
		currentState: StateUnregistered,
	}
}

// CanTransition 检查是否可以转换
func (sm *StateMachine) CanTransition(to State) bool {
	validTo, ok := validTransitions[sm.currentState]
	if !ok {
		return false
	}
	return slices.Contains(validTo, to)
}

// Transition 状态转换
func (sm *StateMachine) Transition(to State) bool {
	if sm.CanTransition(to) {
		sm.currentState = to
		return true
	}
	return false
}

func (sm *StateMachine) Current() State {
	return sm.currentState
}
