package tts

// StateType represents the lifecycle state of an utterance.
type StateType int

const (
	// StateIdle indicates nothing is being spoken.
	StateIdle StateType = iota
	// StateSpeaking indicates an utterance is being spoken and animated.
	StateSpeaking
	// StatePaused indicates the current utterance is paused.
	StatePaused
	// StateEnded indicates the utterance finished and is being torn down.
	StateEnded
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s StateType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// IsActive returns true if an utterance owns the controller.
func (s StateType) IsActive() bool {
	return s == StateSpeaking || s == StatePaused
}

// StateMachine manages state transitions for an utterance.
type StateMachine struct {
	current     StateType
	transitions map[StateType][]StateType
	onEnter     map[StateType]func()
}

// NewStateMachine creates a new state machine with valid transitions.
// Every state may return to idle so that stop is always possible.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[StateType][]StateType{
			StateIdle:     {StateSpeaking},
			StateSpeaking: {StatePaused, StateEnded, StateIdle},
			StatePaused:   {StateSpeaking, StateEnded, StateIdle},
			StateEnded:    {StateIdle},
		},
		onEnter: make(map[StateType]func()),
	}
}

// CanTransition reports whether moving to the given state is allowed.
func (sm *StateMachine) CanTransition(to StateType) bool {
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Transition attempts to transition to the specified state.
func (sm *StateMachine) Transition(to StateType) bool {
	if !sm.CanTransition(to) {
		return false
	}

	sm.current = to

	if enterFn, ok := sm.onEnter[to]; ok && enterFn != nil {
		enterFn()
	}

	return true
}

// Current returns the current state.
func (sm *StateMachine) Current() StateType {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state StateType, fn func()) {
	sm.onEnter[state] = fn
}
