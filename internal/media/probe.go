package media

import (
	"fmt"
	"io"

	mp4 "github.com/abema/go-mp4"
)

// DurationProber reads the duration of a reference video without consuming
// the reader (the same stream is uploaded to storage afterwards).
type DurationProber interface {
	VideoDuration(r io.ReadSeeker) (float64, error)
}

// MP4Prober decodes the movie-header duration of an MP4 container.
type MP4Prober struct{}

// VideoDuration returns the track duration in seconds. The reader is
// rewound to its start before returning.
func (MP4Prober) VideoDuration(r io.ReadSeeker) (float64, error) {
	info, err := mp4.Probe(r)
	if err != nil {
		return 0, fmt.Errorf("probe mp4 container: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind video stream: %w", err)
	}
	if info.Timescale == 0 {
		return 0, fmt.Errorf("mp4 movie header has zero timescale")
	}
	return float64(info.Duration) / float64(info.Timescale), nil
}
