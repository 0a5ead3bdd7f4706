package tts

import "testing"

// TestParseGender tests persona gender tag parsing.
func TestParseGender(t *testing.T) {
	tests := []struct {
		in   string
		want Gender
	}{
		{"female", GenderFemale},
		{"F", GenderFemale},
		{" Female ", GenderFemale},
		{"m", GenderMale},
		{"MALE", GenderMale},
		{"", GenderUnspecified},
		{"robot", GenderUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseGender(tt.in); got != tt.want {
				t.Errorf("ParseGender(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// TestEventKindString tests event kind names.
func TestEventKindString(t *testing.T) {
	for kind, want := range map[EventKind]string{
		EventStart:         "start",
		EventBoundary:      "boundary",
		EventEnd:           "end",
		EventError:         "error",
		EventVoicesChanged: "voices-changed",
		EventKind(99):      "unknown",
	} {
		if got := kind.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

// TestProsodyValidate tests prosody limits.
func TestProsodyValidate(t *testing.T) {
	if err := DefaultProsody().Validate(); err != nil {
		t.Errorf("DefaultProsody() should be valid: %v", err)
	}

	bad := []Prosody{
		{Rate: 0, Pitch: 1, Volume: 1},
		{Rate: 1, Pitch: 3, Volume: 1},
		{Rate: 1, Pitch: 1, Volume: -0.1},
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("Validate(%+v) should fail", p)
		}
	}
}

// TestVoiceIsZero tests the empty voice check.
func TestVoiceIsZero(t *testing.T) {
	if !(Voice{}).IsZero() {
		t.Error("empty voice should be zero")
	}
	if (Voice{ID: "hi"}).IsZero() {
		t.Error("voice with id should not be zero")
	}
}
