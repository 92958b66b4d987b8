package wav

import (
	"fmt"
	"io"
	"os"
	"time"

	gowav "github.com/go-audio/wav"
)

// Info describes a WAV file on disk
type Info struct {
	Path      string        `json:"path"`
	Format    Format        `json:"format"`
	RIFFSize  uint32        `json:"riff_size"`
	DataSize  uint32        `json:"data_size"`
	FileSize  int64         `json:"file_size"`
	Finalized bool          `json:"finalized"`
	Duration  time.Duration `json:"duration"`
	Samples   int           `json:"samples"`
	Peak      int           `json:"peak"`
}

// Inspect reads the header of a WAV file and checks it against the file size.
// Finalized files are also decoded to count samples and find the peak
// amplitude; files still carrying placeholder sizes only report what the
// header and file size say.
func Inspect(path string) (*Info, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat WAV file: %w", err)
	}

	header, err := ReadHeader(file)
	if err != nil {
		return nil, err
	}

	info := &Info{
		Path:     path,
		Format:   header.PCMFormat(),
		RIFFSize: header.ChunkSize,
		DataSize: header.Subchunk2Size,
		FileSize: stat.Size(),
	}
	info.Finalized = int64(header.ChunkSize) == stat.Size()-8 &&
		int64(header.Subchunk2Size) == stat.Size()-HeaderSize
	info.Duration = pcmDuration(stat.Size()-HeaderSize, info.Format)

	if !info.Finalized || info.DataSize == 0 {
		return info, nil
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind WAV file: %w", err)
	}
	decoder := gowav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", path)
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode PCM data: %w", err)
	}

	info.Samples = len(buf.Data)
	info.Peak = peak(buf.Data, info.Format.BitsPerSample)
	return info, nil
}

// pcmDuration converts a PCM byte count into playback time
func pcmDuration(size int64, f Format) time.Duration {
	if size <= 0 || f.ByteRate() <= 0 {
		return 0
	}
	return time.Duration(size * int64(time.Second) / int64(f.ByteRate()))
}

// peak returns the largest absolute sample value. 8-bit PCM is unsigned
// with silence at 128.
func peak(samples []int, bitsPerSample int) int {
	max := 0
	for _, s := range samples {
		if bitsPerSample == 8 {
			s -= 128
		}
		if s < 0 {
			s = -s
		}
		if s > max {
			max = s
		}
	}
	return max
}
