package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Clip is a decoded mono clip with samples in [-1,1].
type Clip struct {
	Format     AudioFormat
	SampleRate int
	Channels   int // channel count of the source before mixdown
	Samples    []float64
}

// Duration returns the playing time of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.Samples)) * time.Second / time.Duration(c.SampleRate)
}

// Decode sniffs data and decodes it as WAV or MP3.
func Decode(data []byte) (*Clip, error) {
	switch SniffFormat(data) {
	case FormatWAV:
		return DecodeWAV(data)
	case FormatMP3:
		return DecodeMP3(bytes.NewReader(data))
	default:
		return nil, ErrUnsupportedFormat
	}
}

// SniffFormat identifies a container from its first bytes, or "".
func SniffFormat(data []byte) AudioFormat {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return FormatMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return ""
	}
}

const (
	wavFormatPCM        = 1
	wavFormatFloat      = 3
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV decodes a RIFF/WAVE file holding 8, 16, 24 or 32-bit integer PCM
// or 32-bit float samples, mixing all channels down to mono.
func DecodeWAV(data []byte) (*Clip, error) {
	if SniffFormat(data) != FormatWAV {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrInvalidFormat)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	channels, rate, bits := int(dec.NumChans), int(dec.SampleRate), int(dec.BitDepth)
	if channels <= 0 || rate <= 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidFormat, channels, rate)
	}

	tag := dec.WavAudioFormat
	switch {
	case (tag == wavFormatPCM || tag == wavFormatExtensible) && (bits == 8 || bits == 16 || bits == 24 || bits == 32):
	case tag == wavFormatFloat && bits == 32:
	default:
		return nil, fmt.Errorf("%w: wav format %d with %d bits", ErrUnsupportedFormat, tag, bits)
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if dec.PCMChunk == nil {
		return nil, fmt.Errorf("%w: no data chunk", ErrInvalidFormat)
	}

	var samples []float64
	if tag == wavFormatFloat {
		raw, err := io.ReadAll(io.LimitReader(dec.PCMChunk.R, int64(dec.PCMSize)))
		if err != nil {
			return nil, fmt.Errorf("failed to read wav data: %w", err)
		}
		samples = mixdownFloat32(raw, channels)
	} else {
		buf, err := dec.FullPCMBuffer()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		samples = mixdownInt(buf.Data, channels, bits)
	}

	if len(samples) == 0 {
		return nil, ErrEmptyClip
	}
	return &Clip{
		Format:     FormatWAV,
		SampleRate: rate,
		Channels:   channels,
		Samples:    samples,
	}, nil
}

// intScale normalizes integer samples of the given depth to [-1,1]. 8-bit
// WAV is unsigned and centred on 128.
func intScale(v, bits int) float64 {
	switch bits {
	case 8:
		return float64(v-128) / 128
	case 16:
		return float64(v) / 32768
	case 24:
		return float64(v) / 8388608
	default:
		return float64(v) / 2147483648
	}
}

// mixdownInt averages interleaved integer frames to mono.
func mixdownInt(data []int, channels, bits int) []float64 {
	frames := len(data) / channels
	out := make([]float64, frames)
	for i := range out {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += intScale(data[i*channels+ch], bits)
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// mixdownFloat32 averages interleaved little-endian float32 frames to mono.
func mixdownFloat32(raw []byte, channels int) []float64 {
	frame := 4 * channels
	out := make([]float64, len(raw)/frame)
	for i := range out {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			p := raw[i*frame+ch*4:]
			sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(p)))
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// mixdownPCM16 averages interleaved little-endian 16-bit frames to mono.
func mixdownPCM16(raw []byte, channels int) []float64 {
	data := make([]int, len(raw)/2)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}
	return mixdownInt(data, channels, 16)
}

// DecodeMP3 decodes an MP3 stream to mono samples.
func DecodeMP3(r io.Reader) (*Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil && len(pcm) == 0 {
		return nil, fmt.Errorf("failed to decode mp3: %w", err)
	}

	// go-mp3 always yields 16-bit little-endian stereo.
	samples := mixdownPCM16(pcm, 2)
	if len(samples) == 0 {
		return nil, ErrEmptyClip
	}
	return &Clip{
		Format:     FormatMP3,
		SampleRate: dec.SampleRate(),
		Channels:   2,
		Samples:    samples,
	}, nil
}
