package google

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/dgnsrekt/mouthpiece/tts"
	"github.com/dgnsrekt/mouthpiece/tts/audio"
	"google.golang.org/api/option"
	ttsbeta "google.golang.org/api/texttospeech/v1beta1"
)

// Synthesis is one request to the synthesis backend.
type Synthesis struct {
	SSML       string
	Voice      tts.Voice
	Prosody    tts.Prosody
	SampleRate int
}

// Client is the synthesis backend.
type Client interface {
	ListVoices(ctx context.Context, languageCode string) ([]tts.Voice, error)
	Synthesize(ctx context.Context, req Synthesis) (audio.Clip, []Mark, error)
	Close() error
}

// cloudClient talks to Cloud Text-to-Speech. Voices come from the v1 client.
// Synthesis goes through the v1beta1 REST service, the only surface that
// returns SSML mark timepoints.
type cloudClient struct {
	voices *texttospeech.Client
	synth  *ttsbeta.Service
}

// NewCloudClient connects to Cloud Text-to-Speech with application default
// credentials, or the given credentials file.
func NewCloudClient(ctx context.Context, credentialsFile string) (Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	voices, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create texttospeech client: %w", err)
	}
	synth, err := ttsbeta.NewService(ctx, opts...)
	if err != nil {
		_ = voices.Close()
		return nil, fmt.Errorf("failed to create texttospeech service: %w", err)
	}
	return &cloudClient{voices: voices, synth: synth}, nil
}

func (c *cloudClient) ListVoices(ctx context.Context, languageCode string) ([]tts.Voice, error) {
	resp, err := c.voices.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{LanguageCode: languageCode})
	if err != nil {
		return nil, err
	}

	voices := make([]tts.Voice, 0, len(resp.Voices))
	for _, v := range resp.Voices {
		voices = append(voices, voiceFromProto(v))
	}
	return voices, nil
}

func voiceFromProto(v *texttospeechpb.Voice) tts.Voice {
	voice := tts.Voice{ID: v.GetName(), Name: v.GetName()}
	if codes := v.GetLanguageCodes(); len(codes) > 0 {
		voice.Language = codes[0]
	}
	switch v.GetSsmlGender() {
	case texttospeechpb.SsmlVoiceGender_FEMALE:
		voice.Gender = tts.GenderFemale
	case texttospeechpb.SsmlVoiceGender_MALE:
		voice.Gender = tts.GenderMale
	}
	return voice
}

func (c *cloudClient) Synthesize(ctx context.Context, req Synthesis) (audio.Clip, []Mark, error) {
	resp, err := c.synth.Text.Synthesize(synthesizeRequest(req)).Context(ctx).Do()
	if err != nil {
		return audio.Clip{}, nil, err
	}
	return decodeResponse(resp)
}

func (c *cloudClient) Close() error {
	return c.voices.Close()
}

func synthesizeRequest(req Synthesis) *ttsbeta.SynthesizeSpeechRequest {
	rate, pitch, gain := AudioParams(req.Prosody)
	return &ttsbeta.SynthesizeSpeechRequest{
		Input: &ttsbeta.SynthesisInput{Ssml: req.SSML},
		Voice: &ttsbeta.VoiceSelectionParams{
			LanguageCode: req.Voice.Language,
			Name:         req.Voice.ID,
		},
		AudioConfig: &ttsbeta.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SpeakingRate:    rate,
			Pitch:           pitch,
			VolumeGainDb:    gain,
			SampleRateHertz: int64(req.SampleRate),
		},
		EnableTimePointing: []string{"SSML_MARK"},
	}
}

func decodeResponse(resp *ttsbeta.SynthesizeSpeechResponse) (audio.Clip, []Mark, error) {
	if resp == nil || resp.AudioContent == "" {
		return audio.Clip{}, nil, errors.New("empty synthesis response")
	}
	content, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return audio.Clip{}, nil, fmt.Errorf("failed to decode audio content: %w", err)
	}

	// LINEAR16 content carries a WAV header.
	clip, err := audio.DecodeWAV(content)
	if err != nil {
		return audio.Clip{}, nil, fmt.Errorf("failed to decode audio: %w", err)
	}

	marks := make([]Mark, 0, len(resp.Timepoints))
	for _, tp := range resp.Timepoints {
		if tp == nil {
			continue
		}
		if offset, ok := parseMark(tp.MarkName); ok {
			marks = append(marks, Mark{
				Offset: offset,
				At:     time.Duration(tp.TimeSeconds * float64(time.Second)),
			})
		}
	}
	return clip, marks, nil
}

// AudioParams maps prosody onto Cloud TTS speaking rate [0.25, 4],
// pitch in semitones [-20, 20] and volume gain in dB [-96, 16].
func AudioParams(p tts.Prosody) (rate, pitch, gain float64) {
	rate = math.Max(0.25, math.Min(4.0, p.Rate))
	pitch = math.Max(-20, math.Min(20, (p.Pitch-1)*20))
	gain = -96
	if p.Volume > 0 {
		gain = math.Max(-96, math.Min(16, 20*math.Log10(p.Volume)))
	}
	return rate, pitch, gain
}
