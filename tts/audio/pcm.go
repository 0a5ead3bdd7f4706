// Package audio plays synthesized PCM clips and reports playback position.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/atomic"
)

var errNotPlaying = errors.New("no clip is playing")

// Format describes signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat is 16-bit mono at 24 kHz.
func DefaultFormat() Format {
	return Format{SampleRate: 24000, Channels: 1, BitDepth: 16}
}

// BytesPerFrame returns the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return f.BitDepth / 8 * f.Channels
}

// Duration returns the play time of n bytes.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate == 0 || f.BytesPerFrame() == 0 {
		return 0
	}
	frames := n / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Validate checks that data is non-empty and frame aligned.
func (f Format) Validate(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty PCM data")
	}
	if bpf := f.BytesPerFrame(); bpf == 0 || len(data)%bpf != 0 {
		return fmt.Errorf("PCM data length %d is not aligned to %d-byte frames", len(data), bpf)
	}
	return nil
}

// Clip is a block of PCM audio.
type Clip struct {
	PCM    []byte
	Format Format
}

// Duration returns the play time of the clip.
func (c Clip) Duration() time.Duration {
	return c.Format.Duration(len(c.PCM))
}

// DecodeWAV extracts the PCM data chunk and format from a RIFF/WAVE file.
func DecodeWAV(wav []byte) (Clip, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return Clip{}, errors.New("not a RIFF/WAVE file")
	}

	format := Format{}
	offset := 12
	for offset+8 <= len(wav) {
		id := string(wav[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := wav[offset+8:]

		switch id {
		case "fmt ":
			if size < 16 || len(body) < 16 {
				return Clip{}, errors.New("short fmt chunk")
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 {
				return Clip{}, fmt.Errorf("unsupported WAV encoding %d", tag)
			}
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			format.BitDepth = int(binary.LittleEndian.Uint16(body[14:16]))
		case "data":
			if format.SampleRate == 0 {
				return Clip{}, errors.New("data chunk before fmt chunk")
			}
			size = min(size, len(body))
			return Clip{PCM: body[:size], Format: format}, nil
		}

		// Chunks are word aligned.
		offset += 8 + size + size%2
	}
	return Clip{}, errors.New("missing data chunk")
}

// positionReader counts bytes handed to the audio device.
type positionReader struct {
	mu     sync.Mutex
	data   []byte
	offset int
	read   atomic.Int64
}

func newPositionReader(data []byte) *positionReader {
	return &positionReader{data: data}
}

func (r *positionReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.offset >= len(r.data) {
		return 0, io.EOF
	}
	n := copy(p, r.data[r.offset:])
	r.offset += n
	r.read.Add(int64(n))
	return n, nil
}

// consumed returns the number of bytes handed out so far.
func (r *positionReader) consumed() int64 {
	return r.read.Load()
}
