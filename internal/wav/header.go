package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	// HeaderSize is the size of the RIFF/WAVE/fmt/data header.
	HeaderSize = 44

	riffSizeOffset = 4
	dataSizeOffset = 40

	pcmFormat     = 1
	fmtChunkSize  = 16
	riffSizeExtra = HeaderSize - 8
)

// MaxDataSize is the largest PCM payload a 32-bit RIFF size field can describe.
const MaxDataSize = math.MaxUint32 - riffSizeExtra

// Format describes the PCM layout of a file
type Format struct {
	SampleRate    int `json:"sample_rate" yaml:"sample_rate"`
	Channels      int `json:"channels" yaml:"channels"`
	BitsPerSample int `json:"bits_per_sample" yaml:"bits_per_sample"`
}

// Validate checks the format can be expressed as plain PCM
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", f.Channels)
	}
	if f.BitsPerSample != 8 && f.BitsPerSample != 16 {
		return fmt.Errorf("bits per sample must be 8 or 16, got %d", f.BitsPerSample)
	}
	return nil
}

// BlockAlign returns the number of bytes per frame across all channels
func (f Format) BlockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of PCM bytes per second
func (f Format) ByteRate() int {
	return f.SampleRate * f.BlockAlign()
}

// Header is the on-disk layout of the first 44 bytes of the file.
// Field order matters: it is written with binary.Write.
type Header struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // file size - 8
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // PCM bytes
}

// NewHeader builds a header for the given format and payload size
func NewHeader(f Format, dataSize uint32) Header {
	return Header{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     riffSizeExtra + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: fmtChunkSize,
		AudioFormat:   pcmFormat,
		NumChannels:   uint16(f.Channels),
		SampleRate:    uint32(f.SampleRate),
		ByteRate:      uint32(f.ByteRate()),
		BlockAlign:    uint16(f.BlockAlign()),
		BitsPerSample: uint16(f.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}
}

// placeholderHeader is written before any audio: both size fields are zero
// until the writer is finalized.
func placeholderHeader(f Format) Header {
	h := NewHeader(f, 0)
	h.ChunkSize = 0
	return h
}

// PCMFormat returns the PCM format declared by the header
func (h Header) PCMFormat() Format {
	return Format{
		SampleRate:    int(h.SampleRate),
		Channels:      int(h.NumChannels),
		BitsPerSample: int(h.BitsPerSample),
	}
}

// MarshalBinary encodes the header as 44 little-endian bytes
func (h Header) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize))
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("failed to encode WAV header: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadHeader reads and validates a PCM WAV header
func ReadHeader(r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(h.ChunkID[:]) != "RIFF" {
		return h, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(h.Format[:]) != "WAVE" {
		return h, fmt.Errorf("invalid WAV file: missing WAVE format")
	}
	if string(h.Subchunk1ID[:]) != "fmt " {
		return h, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if h.Subchunk1Size != fmtChunkSize {
		return h, fmt.Errorf("unsupported fmt chunk size: %d", h.Subchunk1Size)
	}
	if string(h.Subchunk2ID[:]) != "data" {
		return h, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if h.AudioFormat != pcmFormat {
		return h, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", h.AudioFormat)
	}

	return h, nil
}

// PatchSizes rewrites the RIFF and data size fields of a header that
// starts at offset 0 of w. The write position is left after the data size.
func PatchSizes(w io.WriteSeeker, dataSize uint32) error {
	var field [4]byte

	if _, err := w.Seek(riffSizeOffset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to RIFF size: %w", err)
	}
	binary.LittleEndian.PutUint32(field[:], riffSizeExtra+dataSize)
	if _, err := w.Write(field[:]); err != nil {
		return fmt.Errorf("failed to write RIFF size: %w", err)
	}

	if _, err := w.Seek(dataSizeOffset, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to data size: %w", err)
	}
	binary.LittleEndian.PutUint32(field[:], dataSize)
	if _, err := w.Write(field[:]); err != nil {
		return fmt.Errorf("failed to write data size: %w", err)
	}

	return nil
}
