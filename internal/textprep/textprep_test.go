package textprep

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeakable(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "plain",
			markdown: "Hello there!",
			want:     "Hello there!",
		},
		{
			name:     "heading gets a stop",
			markdown: "# Namaste\n\nKaise ho?",
			want:     "Namaste. Kaise ho?",
		},
		{
			name:     "emphasis and links keep their text",
			markdown: "Hello **world**, see [the docs](https://example.com)!",
			want:     "Hello world, see the docs!",
		},
		{
			name:     "code blocks are skipped",
			markdown: "Run this:\n\n```go\nfmt.Println(\"hi\")\n```\n\nDone",
			want:     "Run this: Done.",
		},
		{
			name:     "inline code is read",
			markdown: "Run `make` now",
			want:     "Run make now.",
		},
		{
			name:     "list items",
			markdown: "- first item\n- second item",
			want:     "first item. second item.",
		},
		{
			name:     "bare urls dropped",
			markdown: "Visit https://example.com today",
			want:     "Visit today.",
		},
		{
			name:     "soft breaks join lines",
			markdown: "line one\nline two",
			want:     "line one line two.",
		},
		{
			name:     "devanagari danda",
			markdown: "मैं ठीक हूँ।",
			want:     "मैं ठीक हूँ।",
		},
		{
			name:     "empty",
			markdown: "",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Speakable(tt.markdown))
		})
	}
}

func TestIncludeCode(t *testing.T) {
	p := New(Options{IncludeCode: true})
	got := p.Speakable("Example\n\n    make build\n    make test\n")
	assert.Equal(t, "Example. make build. make test.", got)
}
