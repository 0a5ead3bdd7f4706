// Package voice picks a synthesis voice for a persona from an engine's
// voice catalog.
package voice

import (
	"errors"
	"strings"

	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/sahilm/fuzzy"
	"golang.org/x/text/language"
)

// ErrNilCatalog is returned when selection is asked to read from no catalog
// at all. An empty catalog is not an error.
var ErrNilCatalog = errors.New("voice catalog is nil")

// Catalog is anything that can list voices. Every tts.Engine is a Catalog.
type Catalog interface {
	Voices() []tts.Voice
}

// Markers names the voices selection should prefer. Matching is a
// case-insensitive substring test on the voice name and id.
type Markers struct {
	Language      string   // Default target language, e.g. "hi"
	LanguageNames []string // Names that imply the default language, e.g. "hindi"
	Female        []string // Known female voices, e.g. "lekha"
	Male          []string // Known male voices, e.g. "rishi"
}

// DefaultMarkers returns the markers for Hindi voices.
func DefaultMarkers() Markers {
	return MarkersFromConfig(tts.DefaultVoiceConfig())
}

// MarkersFromConfig builds Markers from configuration.
func MarkersFromConfig(cfg tts.VoiceConfig) Markers {
	return Markers{
		Language:      cfg.Language,
		LanguageNames: lowerAll(cfg.LanguageNames),
		Female:        lowerAll(cfg.Female),
		Male:          lowerAll(cfg.Male),
	}
}

// SelectFrom reads a snapshot of c and picks a voice for hint.
func SelectFrom(c Catalog, hint tts.VoiceHint, m Markers) (tts.Voice, error) {
	if c == nil {
		return tts.Voice{}, ErrNilCatalog
	}
	v, ok := Pick(c.Voices(), hint, m)
	if !ok {
		return tts.Voice{}, tts.ErrVoiceUnavailable
	}
	return v, nil
}

// Pick runs the selection chain over voices. The first rule that matches
// wins:
//
//  1. the preferred voice named by the hint, fuzzy matched
//  2. a voice carrying the gender's marker
//  3. a target-language voice that is not a marker of the other gender
//  4. any target-language voice
//  5. the first voice in the catalog
//
// Pick reports false only when voices is empty.
func Pick(voices []tts.Voice, hint tts.VoiceHint, m Markers) (tts.Voice, bool) {
	if len(voices) == 0 {
		return tts.Voice{}, false
	}

	if hint.Preferred != "" {
		if v, ok := preferred(voices, hint.Preferred); ok {
			return v, true
		}
	}

	lang := newLanguageMatcher(hint.Language, m)

	var own, other []string
	switch hint.Gender {
	case tts.GenderFemale:
		own, other = m.Female, m.Male
	case tts.GenderMale:
		own, other = m.Male, m.Female
	}

	if len(own) > 0 {
		if v, ok := find(voices, func(v tts.Voice) bool { return hasMarker(v, own) }); ok {
			return v, true
		}
	}
	if len(other) > 0 {
		if v, ok := find(voices, func(v tts.Voice) bool { return lang.match(v) && !hasMarker(v, other) }); ok {
			return v, true
		}
	}
	if v, ok := find(voices, lang.match); ok {
		return v, true
	}

	return voices[0], true
}

// preferred resolves an explicit voice name. Exact id or name matches win
// over fuzzy ones.
func preferred(voices []tts.Voice, name string) (tts.Voice, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.ID, name) || strings.EqualFold(v.Name, name) {
			return v, true
		}
	}

	matches := fuzzy.FindFrom(strings.ToLower(name), voiceSource(voices))
	if len(matches) == 0 {
		return tts.Voice{}, false
	}
	return voices[matches[0].Index], true
}

// voiceSource adapts a voice list for fuzzy matching.
type voiceSource []tts.Voice

func (s voiceSource) String(i int) string {
	return strings.ToLower(s[i].Name + " " + s[i].ID)
}

func (s voiceSource) Len() int { return len(s) }

// languageMatcher decides whether a voice speaks the target language.
type languageMatcher struct {
	base  language.Base
	valid bool
	raw   string
	names []string
}

func newLanguageMatcher(target string, m Markers) languageMatcher {
	if target == "" {
		target = m.Language
	}
	lm := languageMatcher{raw: strings.ToLower(target)}
	if tag, err := language.Parse(normalizeTag(target)); err == nil {
		lm.base, _ = tag.Base()
		lm.valid = true
	}

	// Language names only describe the configured language.
	if def, err := language.Parse(normalizeTag(m.Language)); err == nil && lm.valid {
		if b, _ := def.Base(); b == lm.base {
			lm.names = m.LanguageNames
		}
	} else if strings.EqualFold(target, m.Language) {
		lm.names = m.LanguageNames
	}
	return lm
}

func (lm languageMatcher) match(v tts.Voice) bool {
	if v.Language != "" {
		if tag, err := language.Parse(normalizeTag(v.Language)); err == nil && lm.valid {
			if b, _ := tag.Base(); b == lm.base {
				return true
			}
		} else if lm.raw != "" && strings.HasPrefix(strings.ToLower(v.Language), lm.raw) {
			return true
		}
	}
	return hasMarker(v, lm.names)
}

// normalizeTag turns platform locale strings like "hi_IN" into BCP 47.
func normalizeTag(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "_", "-")
}

func hasMarker(v tts.Voice, markers []string) bool {
	name := strings.ToLower(v.Name)
	id := strings.ToLower(v.ID)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(name, m) || strings.Contains(id, m) {
			return true
		}
	}
	return false
}

func find(voices []tts.Voice, pred func(tts.Voice) bool) (tts.Voice, bool) {
	for _, v := range voices {
		if pred(v) {
			return v, true
		}
	}
	return tts.Voice{}, false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
