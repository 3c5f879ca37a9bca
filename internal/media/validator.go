package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrDurationExceeded is returned when a reference video is longer than
	// the configured ceiling. The file must never reach the orchestrator.
	ErrDurationExceeded = errors.New("video duration exceeds the allowed maximum")
	// ErrUnsupportedType is returned when the sniffed content type is not an
	// accepted video or image format.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Validator checks uploaded reference files before any credits are touched.
// Content types are sniffed from the file bytes rather than trusted from the
// client headers.
type Validator struct {
	Prober         DurationProber
	MaxDurationSec float64
}

// NewValidator returns a Validator with the MP4 prober and the given
// duration ceiling in seconds.
func NewValidator(maxDurationSec int) *Validator {
	return &Validator{Prober: MP4Prober{}, MaxDurationSec: float64(maxDurationSec)}
}

// ValidateVideo sniffs the stream, probes its duration and enforces the
// ceiling. On success it returns the duration in seconds with the reader
// rewound for upload.
func (v *Validator) ValidateVideo(r io.ReadSeeker) (float64, error) {
	kind, header, err := sniff(r)
	if err != nil {
		return 0, err
	}
	if !isVideoStream(kind, header) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}

	duration, err := v.Prober.VideoDuration(r)
	if err != nil {
		return 0, err
	}
	if duration > v.MaxDurationSec {
		return 0, fmt.Errorf("%w: %.1fs > %.0fs", ErrDurationExceeded, duration, v.MaxDurationSec)
	}
	return duration, nil
}

// ValidateImage sniffs the stream and accepts any image format. The reader
// is rewound for upload.
func (v *Validator) ValidateImage(r io.ReadSeeker) (string, error) {
	kind, _, err := sniff(r)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(kind, "image/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
	return kind, nil
}

// isVideoStream accepts the video types DetectContentType knows plus any ISO
// base media file. DetectContentType only recognizes ftyp brands that start
// with "mp4", so common brands like isom and avc1 sniff as octet-stream even
// though the prober parses them fine.
func isVideoStream(kind string, header []byte) bool {
	if kind == "video/mp4" || kind == "video/quicktime" || kind == "video/webm" {
		return true
	}
	return len(header) >= 8 && string(header[4:8]) == "ftyp"
}

func sniff(r io.ReadSeeker) (string, []byte, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, fmt.Errorf("read file header: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", nil, fmt.Errorf("rewind stream: %w", err)
	}
	return http.DetectContentType(buf[:n]), buf[:n], nil
}
