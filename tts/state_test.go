package tts

import "testing"

// TestStateTypeString tests the String() method for StateType.
func TestStateTypeString(t *testing.T) {
	tests := []struct {
		state    StateType
		expected string
	}{
		{StateIdle, "idle"},
		{StateSpeaking, "speaking"},
		{StatePaused, "paused"},
		{StateEnded, "ended"},
		{StateType(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if result := tt.state.String(); result != tt.expected {
				t.Errorf("StateType.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestStateIsActive tests the IsActive() method.
func TestStateIsActive(t *testing.T) {
	tests := []struct {
		state    StateType
		expected bool
	}{
		{StateIdle, false},
		{StateSpeaking, true},
		{StatePaused, true},
		{StateEnded, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if result := tt.state.IsActive(); result != tt.expected {
				t.Errorf("IsActive() = %v, want %v", result, tt.expected)
			}
		})
	}
}

// TestStateMachineTransitions tests the utterance lifecycle.
func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name  string
		path  []StateType
		valid []bool
	}{
		{
			name:  "speak then end",
			path:  []StateType{StateSpeaking, StateEnded, StateIdle},
			valid: []bool{true, true, true},
		},
		{
			name:  "pause and resume",
			path:  []StateType{StateSpeaking, StatePaused, StateSpeaking, StatePaused, StateEnded, StateIdle},
			valid: []bool{true, true, true, true, true, true},
		},
		{
			name:  "stop while paused",
			path:  []StateType{StateSpeaking, StatePaused, StateIdle},
			valid: []bool{true, true, true},
		},
		{
			name:  "pause from idle",
			path:  []StateType{StatePaused},
			valid: []bool{false},
		},
		{
			name:  "ended cannot resume",
			path:  []StateType{StateSpeaking, StateEnded, StateSpeaking},
			valid: []bool{true, true, false},
		},
		{
			name:  "idle cannot end",
			path:  []StateType{StateEnded},
			valid: []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			for i, to := range tt.path {
				before := sm.Current()
				if got := sm.Transition(to); got != tt.valid[i] {
					t.Fatalf("step %d: Transition(%v) from %v = %v, want %v", i, to, before, got, tt.valid[i])
				}
				if !tt.valid[i] && sm.Current() != before {
					t.Fatalf("step %d: rejected transition changed state to %v", i, sm.Current())
				}
			}
		})
	}
}

// TestStateMachineCallbacks tests enter callbacks.
func TestStateMachineCallbacks(t *testing.T) {
	sm := NewStateMachine()

	var calls []string
	sm.OnEnter(StateSpeaking, func() { calls = append(calls, "enter-speaking") })
	sm.OnEnter(StateIdle, func() { calls = append(calls, "enter-idle") })

	sm.Transition(StateSpeaking)
	sm.Transition(StateEnded) // no callback registered

	if len(calls) != 1 || calls[0] != "enter-speaking" {
		t.Errorf("callbacks = %v, want [enter-speaking]", calls)
	}

	// Rejected transitions never run callbacks.
	sm.Transition(StatePaused)
	if len(calls) != 1 {
		t.Errorf("rejected transition ran callbacks: %v", calls)
	}

	sm.Transition(StateIdle)
	if len(calls) != 2 || calls[1] != "enter-idle" {
		t.Errorf("callbacks = %v, want [enter-speaking enter-idle]", calls)
	}
}
