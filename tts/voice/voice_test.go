package voice_test

import (
	"errors"
	"testing"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lekha    = tts.Voice{ID: "com.apple.lekha", Name: "Lekha", Language: "hi-IN"}
	rishi    = tts.Voice{ID: "ms-rishi", Name: "Microsoft Rishi - Hindi (India)", Language: "hi_IN"}
	swara    = tts.Voice{ID: "swara", Name: "Swara", Language: "hi"}
	hindiNL  = tts.Voice{ID: "voice-7", Name: "Google हिन्दी hindi", Language: ""}
	samantha = tts.Voice{ID: "samantha", Name: "Samantha", Language: "en-US", Default: true}
	daniel   = tts.Voice{ID: "daniel", Name: "Daniel", Language: "en-GB"}
)

type staticCatalog []tts.Voice

func (c staticCatalog) Voices() []tts.Voice { return c }

func TestPick(t *testing.T) {
	female := tts.VoiceHint{Gender: tts.GenderFemale}
	male := tts.VoiceHint{Gender: tts.GenderMale}
	unspecified := tts.VoiceHint{}

	tests := []struct {
		name   string
		voices []tts.Voice
		hint   tts.VoiceHint
		want   tts.Voice
	}{
		{"female marker wins", []tts.Voice{samantha, rishi, lekha}, female, lekha},
		{"female skips male marker", []tts.Voice{samantha, rishi, swara}, female, swara},
		{"female falls back to male hindi voice", []tts.Voice{samantha, rishi}, female, rishi},
		{"female falls back to first entry", []tts.Voice{daniel, samantha}, female, daniel},
		{"male marker wins", []tts.Voice{lekha, swara, rishi}, male, rishi},
		{"male skips female marker", []tts.Voice{lekha, swara}, male, swara},
		{"male falls back to female hindi voice", []tts.Voice{samantha, lekha}, male, lekha},
		{"unspecified prefers language voice", []tts.Voice{samantha, swara}, unspecified, swara},
		{"unspecified falls back to first entry", []tts.Voice{daniel, samantha}, unspecified, daniel},
		{"language name in voice name", []tts.Voice{samantha, hindiNL}, unspecified, hindiNL},
		{"underscore locale matches", []tts.Voice{samantha, rishi}, unspecified, rishi},
		{"explicit language overrides default", []tts.Voice{lekha, daniel}, tts.VoiceHint{Language: "en"}, daniel},
		{"hindi names ignored for other languages", []tts.Voice{hindiNL, samantha}, tts.VoiceHint{Language: "en-US"}, samantha},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := voice.Pick(tt.voices, tt.hint, voice.DefaultMarkers())
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickPreferred(t *testing.T) {
	voices := []tts.Voice{samantha, rishi, lekha, swara}

	got, ok := voice.Pick(voices, tts.VoiceHint{Gender: tts.GenderFemale, Preferred: "swara"}, voice.DefaultMarkers())
	require.True(t, ok)
	assert.Equal(t, swara, got, "exact name beats the gender marker")

	got, ok = voice.Pick(voices, tts.VoiceHint{Preferred: "msrishi"}, voice.DefaultMarkers())
	require.True(t, ok)
	assert.Equal(t, rishi, got, "fuzzy match on name and id")

	got, ok = voice.Pick(voices, tts.VoiceHint{Gender: tts.GenderFemale, Preferred: "zzzz"}, voice.DefaultMarkers())
	require.True(t, ok)
	assert.Equal(t, lekha, got, "unmatched preference falls through to the chain")
}

func TestPickEmptyCatalog(t *testing.T) {
	for _, g := range []tts.Gender{tts.GenderFemale, tts.GenderMale, tts.GenderUnspecified} {
		_, ok := voice.Pick(nil, tts.VoiceHint{Gender: g}, voice.DefaultMarkers())
		assert.False(t, ok, "gender %v", g)
	}
}

func TestSelectFrom(t *testing.T) {
	_, err := voice.SelectFrom(nil, tts.VoiceHint{}, voice.DefaultMarkers())
	assert.ErrorIs(t, err, voice.ErrNilCatalog)

	_, err = voice.SelectFrom(staticCatalog{}, tts.VoiceHint{Gender: tts.GenderFemale}, voice.DefaultMarkers())
	assert.True(t, errors.Is(err, tts.ErrVoiceUnavailable))

	v, err := voice.SelectFrom(staticCatalog{samantha, lekha}, tts.VoiceHint{Gender: tts.GenderFemale}, voice.DefaultMarkers())
	require.NoError(t, err)
	assert.Equal(t, lekha, v)
}

func TestMarkersFromConfig(t *testing.T) {
	cfg := tts.DefaultVoiceConfig()
	cfg.Female = []string{" Swara ", ""}

	m := voice.MarkersFromConfig(cfg)
	assert.Equal(t, []string{"swara"}, m.Female)
	assert.Equal(t, []string{"rishi"}, m.Male)

	got, ok := voice.Pick([]tts.Voice{lekha, swara}, tts.VoiceHint{Gender: tts.GenderFemale}, m)
	require.True(t, ok)
	assert.Equal(t, swara, got)
}
