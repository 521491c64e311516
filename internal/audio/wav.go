package audio

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	BitDepth  = 16
	pcmFormat = 1
	maxInt16  = 32767
)

// ErrInvalidWAV is returned when a stream is not a readable PCM WAV file.
var ErrInvalidWAV = errors.New("audio: invalid wav stream")

// ToPCM16 converts a float sample to 16-bit PCM, clamping to full scale.
func ToPCM16(s float64) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int(math.Round(s * maxInt16))
}

// EncodeWAV writes interleaved samples as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, samples []float64, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("audio: invalid format %d Hz x %d channels", sampleRate, channels)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = ToPCM16(s)
	}

	enc := wav.NewEncoder(w, sampleRate, BitDepth, channels, pcmFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: write pcm: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return nil
}

// WAVBytes encodes samples into an in-memory WAV file.
func WAVBytes(samples []float64, sampleRate, channels int) ([]byte, error) {
	buf := &seekBuffer{}
	if err := EncodeWAV(buf, samples, sampleRate, channels); err != nil {
		return nil, err
	}
	return buf.data, nil
}

// DecodeWAV reads a 16-bit PCM WAV stream back into float samples.
func DecodeWAV(r io.ReadSeeker) (samples []float64, sampleRate, channels int, err error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, 0, ErrInvalidWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, 0, fmt.Errorf("audio: read pcm: %w", err)
	}

	samples = make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float64(v) / maxInt16
	}
	return samples, int(dec.SampleRate), int(dec.NumChans), nil
}

// seekBuffer is an in-memory io.WriteSeeker. The WAV encoder seeks back to
// patch chunk sizes once the data length is known.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if end := b.pos + len(p); end > len(b.data) {
		if end > cap(b.data) {
			grown := make([]byte, end, 2*end)
			copy(grown, b.data)
			b.data = grown
		} else {
			b.data = b.data[:end]
		}
	}
	n := copy(b.data[b.pos:], p)
	b.pos += n
	return n, nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(b.pos)
	case io.SeekEnd:
		base = int64(len(b.data))
	default:
		return 0, fmt.Errorf("audio: invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("audio: negative seek position")
	}
	b.pos = int(next)
	return next, nil
}
