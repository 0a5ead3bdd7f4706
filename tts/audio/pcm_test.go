package audio

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
	"time"
)

// wav builds a RIFF/WAVE file with an optional extra chunk before data.
func wav(f Format, pcm []byte, extra string) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(f.Channels))
	binary.Write(&b, binary.LittleEndian, uint32(f.SampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(f.SampleRate*f.BytesPerFrame()))
	binary.Write(&b, binary.LittleEndian, uint16(f.BytesPerFrame()))
	binary.Write(&b, binary.LittleEndian, uint16(f.BitDepth))

	if extra != "" {
		b.WriteString("LIST")
		binary.Write(&b, binary.LittleEndian, uint32(len(extra)))
		b.WriteString(extra)
		if len(extra)%2 == 1 {
			b.WriteByte(0)
		}
	}

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

// TestFormatDuration tests byte to duration conversion.
func TestFormatDuration(t *testing.T) {
	f := DefaultFormat()
	if got := f.Duration(48000); got != time.Second {
		t.Errorf("Expected 1s for 48000 bytes, got %v", got)
	}
	if got := (Format{}).Duration(100); got != 0 {
		t.Errorf("Expected 0 for empty format, got %v", got)
	}
}

// TestFormatValidate tests PCM alignment checks.
func TestFormatValidate(t *testing.T) {
	f := DefaultFormat()
	if err := f.Validate(nil); err == nil {
		t.Error("Expected error for empty data")
	}
	if err := f.Validate([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for unaligned data")
	}
	if err := f.Validate([]byte{1, 2}); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestDecodeWAV tests header parsing, including odd sized extra chunks.
func TestDecodeWAV(t *testing.T) {
	f := Format{SampleRate: 44100, Channels: 2, BitDepth: 16}
	pcm := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	for _, extra := range []string{"", "odd", "even"} {
		clip, err := DecodeWAV(wav(f, pcm, extra))
		if err != nil {
			t.Fatalf("DecodeWAV(extra=%q) failed: %v", extra, err)
		}
		if clip.Format != f {
			t.Errorf("Expected format %+v, got %+v", f, clip.Format)
		}
		if !bytes.Equal(clip.PCM, pcm) {
			t.Errorf("Expected PCM %v, got %v", pcm, clip.PCM)
		}
	}
}

// TestDecodeWAVErrors tests rejection of malformed input.
func TestDecodeWAVErrors(t *testing.T) {
	tests := map[string][]byte{
		"short":   []byte("RIFF"),
		"not wav": []byte("RIFF\x00\x00\x00\x00AVI LIST"),
		"no data": wav(DefaultFormat(), nil, "")[:36],
	}
	for name, data := range tests {
		if _, err := DecodeWAV(data); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

// TestPositionReader tests byte counting.
func TestPositionReader(t *testing.T) {
	r := newPositionReader([]byte("abcdef"))
	buf := make([]byte, 4)

	if n, _ := r.Read(buf); n != 4 || r.consumed() != 4 {
		t.Errorf("Expected 4 bytes consumed, got %d/%d", n, r.consumed())
	}
	if n, _ := r.Read(buf); n != 2 || r.consumed() != 6 {
		t.Errorf("Expected 6 bytes consumed, got %d/%d", n, r.consumed())
	}
	if _, err := r.Read(buf); err != io.EOF {
		t.Errorf("Expected EOF, got %v", err)
	}
}
