package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeWAV builds a RIFF/WAVE file around interleaved sample bytes.
func encodeWAV(tag uint16, channels, rate, bits int, payload []byte) []byte {
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(payload)))
	b.WriteString("WAVE")

	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, tag)
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*channels*bits/8))
	binary.Write(&b, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&b, binary.LittleEndian, uint16(bits))

	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(payload)))
	b.Write(payload)
	return b.Bytes()
}

func pcm16(samples ...int16) []byte {
	var b bytes.Buffer
	for _, s := range samples {
		binary.Write(&b, binary.LittleEndian, s)
	}
	return b.Bytes()
}

// toneWAV returns a mono PCM16 clip holding a constant level.
func toneWAV(rate int, d time.Duration, level float64) []byte {
	n := int(d.Seconds() * float64(rate))
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(level * 32767)
	}
	return encodeWAV(wavFormatPCM, 1, rate, 16, pcm16(samples...))
}

func TestDecodeWAVMono16(t *testing.T) {
	clip, err := DecodeWAV(encodeWAV(wavFormatPCM, 1, 16000, 16, pcm16(0, 16384, -16384, -32768)))
	require.NoError(t, err)

	assert.Equal(t, FormatWAV, clip.Format)
	assert.Equal(t, 16000, clip.SampleRate)
	assert.Equal(t, 1, clip.Channels)
	assert.Equal(t, []float64{0, 0.5, -0.5, -1}, clip.Samples)
	assert.Equal(t, 250*time.Microsecond, clip.Duration())
}

func TestDecodeWAVMixesStereo(t *testing.T) {
	clip, err := Decode(encodeWAV(wavFormatPCM, 2, 22050, 16, pcm16(16384, 0, -16384, -16384)))
	require.NoError(t, err)
	assert.Equal(t, 2, clip.Channels)
	assert.Equal(t, []float64{0.25, -0.5}, clip.Samples)
}

func TestDecodeWAVWrittenByEncoder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answer.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 22050, 16, 2, wavFormatPCM)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 22050},
		Data:           []int{16384, 16384, -8192, 0, 0, 0},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	clip, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, 22050, clip.SampleRate)
	assert.Equal(t, 2, clip.Channels)
	assert.Equal(t, []float64{0.5, -0.125, 0}, clip.Samples)
}

func TestDecodeWAVFloat32(t *testing.T) {
	var b bytes.Buffer
	for _, v := range []float32{0.25, -0.75} {
		binary.Write(&b, binary.LittleEndian, math.Float32bits(v))
	}
	clip, err := DecodeWAV(encodeWAV(wavFormatFloat, 1, 48000, 32, b.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.75}, clip.Samples)
}

func TestDecodeWAVEightAndTwentyFourBit(t *testing.T) {
	clip, err := DecodeWAV(encodeWAV(wavFormatPCM, 1, 8000, 8, []byte{128, 192, 0}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, -1}, clip.Samples)

	clip, err = DecodeWAV(encodeWAV(wavFormatPCM, 1, 8000, 24, []byte{0x00, 0x00, 0x40, 0x00, 0x00, 0xC0}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.5}, clip.Samples)
}

func TestDecodeWAVErrors(t *testing.T) {
	_, err := DecodeWAV([]byte("not a wave file"))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = DecodeWAV(encodeWAV(2, 1, 16000, 4, []byte{1, 2}))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = DecodeWAV(encodeWAV(wavFormatPCM, 1, 16000, 16, nil))
	assert.ErrorIs(t, err, ErrEmptyClip)

	noData := encodeWAV(wavFormatPCM, 1, 16000, 16, nil)[:36]
	_, err = DecodeWAV(noData)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestSniffFormat(t *testing.T) {
	assert.Equal(t, FormatWAV, SniffFormat(toneWAV(8000, time.Millisecond, 0)))
	assert.Equal(t, FormatMP3, SniffFormat([]byte("ID3\x04\x00")))
	assert.Equal(t, FormatMP3, SniffFormat([]byte{0xFF, 0xFB, 0x90}))
	assert.Equal(t, AudioFormat(""), SniffFormat([]byte("OggS")))

	_, err := Decode([]byte("OggS...."))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeMP3RejectsEmptyStream(t *testing.T) {
	_, err := DecodeMP3(bytes.NewReader(nil))
	assert.Error(t, err)
}
