package wav

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHeaderLayout(t *testing.T) {
	format := Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

	data, err := NewHeader(format, 3840).MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, HeaderSize)

	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, uint32(36+3840), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, "WAVE", string(data[8:12]))
	assert.Equal(t, "fmt ", string(data[12:16]))
	assert.Equal(t, uint32(16), binary.LittleEndian.Uint32(data[16:20]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(data[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(data[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(data[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(data[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(data[34:36]))
	assert.Equal(t, "data", string(data[36:40]))
	assert.Equal(t, uint32(3840), binary.LittleEndian.Uint32(data[40:44]))
}

func TestNewHeaderStereo8Bit(t *testing.T) {
	format := Format{SampleRate: 8000, Channels: 2, BitsPerSample: 8}

	h := NewHeader(format, 0)
	assert.Equal(t, uint32(16000), h.ByteRate)
	assert.Equal(t, uint16(2), h.BlockAlign)
	assert.Equal(t, format, h.PCMFormat())
}

func TestPlaceholderHeaderHasZeroSizes(t *testing.T) {
	h := placeholderHeader(Format{SampleRate: 44100, Channels: 2, BitsPerSample: 16})
	assert.Zero(t, h.ChunkSize)
	assert.Zero(t, h.Subchunk2Size)
	assert.Equal(t, uint32(176400), h.ByteRate)
}

func TestReadHeaderRejectsGarbage(t *testing.T) {
	valid, err := NewHeader(Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}, 10).MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte)
		want   string
	}{
		{"riff tag", func(b []byte) { copy(b[0:4], "RIFX") }, "missing RIFF header"},
		{"wave tag", func(b []byte) { copy(b[8:12], "AVI ") }, "missing WAVE format"},
		{"fmt tag", func(b []byte) { copy(b[12:16], "junk") }, "missing fmt chunk"},
		{"data tag", func(b []byte) { copy(b[36:40], "LIST") }, "missing data chunk"},
		{"format code", func(b []byte) { binary.LittleEndian.PutUint16(b[20:22], 3) }, "only PCM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Clone(valid)
			tt.mutate(data)
			_, err := ReadHeader(bytes.NewReader(data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err = ReadHeader(bytes.NewReader(valid[:20]))
	assert.Error(t, err)
}

func TestPatchSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patch.wav")
	data, err := placeholderHeader(Format{SampleRate: 22050, Channels: 1, BitsPerSample: 16}).MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, make([]byte, 100)...), 0644))

	file, err := os.OpenFile(path, os.O_RDWR, 0)
	require.NoError(t, err)
	require.NoError(t, PatchSizes(file, 100))
	require.NoError(t, file.Close())

	patched, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, patched, HeaderSize+100)
	assert.Equal(t, uint32(len(patched)-8), binary.LittleEndian.Uint32(patched[4:8]))
	assert.Equal(t, uint32(100), binary.LittleEndian.Uint32(patched[40:44]))
	assert.Equal(t, "data", string(patched[36:40]))
}

func TestFormatValidate(t *testing.T) {
	assert.NoError(t, Format{SampleRate: 8000, Channels: 2, BitsPerSample: 8}.Validate())
	assert.Error(t, Format{SampleRate: 0, Channels: 1, BitsPerSample: 16}.Validate())
	assert.Error(t, Format{SampleRate: 8000, Channels: 3, BitsPerSample: 16}.Validate())
	assert.Error(t, Format{SampleRate: 8000, Channels: 1, BitsPerSample: 24}.Validate())
}
