package voice_test

import (
	"testing"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorReselectsOnCatalogChange(t *testing.T) {
	s := voice.NewSelector(voice.DefaultMarkers())
	s.SetHint(tts.VoiceHint{Gender: tts.GenderFemale})

	_, ok := s.Pinned()
	assert.False(t, ok, "nothing pinned before the catalog loads")

	// Catalog arrives asynchronously without the preferred voice.
	assert.True(t, s.SetCatalog([]tts.Voice{samantha, rishi}))
	v, ok := s.Pinned()
	require.True(t, ok)
	assert.Equal(t, rishi, v)

	// Same result again is not a change.
	assert.False(t, s.SetCatalog([]tts.Voice{samantha, rishi}))

	// A better voice shows up later.
	assert.True(t, s.SetCatalog([]tts.Voice{samantha, rishi, lekha}))
	v, _ = s.Pinned()
	assert.Equal(t, lekha, v)

	// Catalog empties out.
	assert.True(t, s.SetCatalog(nil))
	_, ok = s.Pinned()
	assert.False(t, ok)
}

func TestSelectorReselectsOnPersonaChange(t *testing.T) {
	s := voice.NewSelector(voice.DefaultMarkers())
	s.SetCatalog([]tts.Voice{samantha, rishi, lekha})

	s.SetHint(tts.VoiceHint{Gender: tts.GenderFemale})
	v, _ := s.Pinned()
	assert.Equal(t, lekha, v)

	assert.True(t, s.SetHint(tts.VoiceHint{Gender: tts.GenderMale}))
	v, _ = s.Pinned()
	assert.Equal(t, rishi, v)

	assert.False(t, s.SetHint(tts.VoiceHint{Gender: tts.GenderMale}))
	assert.Equal(t, tts.GenderMale, s.Hint().Gender)
}

func TestSelectorSelect(t *testing.T) {
	s := voice.NewSelector(voice.DefaultMarkers())

	_, err := s.Select(nil, tts.VoiceHint{})
	assert.ErrorIs(t, err, voice.ErrNilCatalog)

	_, err = s.Select(staticCatalog{}, tts.VoiceHint{Gender: tts.GenderFemale})
	assert.ErrorIs(t, err, tts.ErrVoiceUnavailable)

	v, err := s.Select(staticCatalog{daniel, swara}, tts.VoiceHint{Gender: tts.GenderMale})
	require.NoError(t, err)
	assert.Equal(t, swara, v)
	assert.Len(t, s.Voices(), 2)

	changed, err := s.Refresh(staticCatalog{daniel, swara, rishi})
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = s.Refresh(nil)
	assert.ErrorIs(t, err, voice.ErrNilCatalog)
}

func TestSelectorSelectCopiesCatalog(t *testing.T) {
	s := voice.NewSelector(voice.DefaultMarkers())
	catalog := staticCatalog{daniel, swara}

	_, err := s.Select(catalog, tts.VoiceHint{Gender: tts.GenderMale})
	require.NoError(t, err)

	catalog[1] = samantha
	assert.Equal(t, []tts.Voice{daniel, swara}, s.Voices())
}
