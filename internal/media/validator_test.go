package media

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// fakeProber returns a fixed duration without parsing anything.
type fakeProber struct {
	duration float64
	err      error
}

func (f fakeProber) VideoDuration(io.ReadSeeker) (float64, error) {
	return f.duration, f.err
}

// mp4Header builds an ftyp box with the given major brand.
func mp4Header(brand string) []byte {
	b := []byte{0x00, 0x00, 0x00, 0x18}
	b = append(b, []byte("ftyp"+brand)...)
	b = append(b, bytes.Repeat([]byte{0x00}, 24)...)
	return b
}

func pngHeader() []byte {
	b := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	return append(b, bytes.Repeat([]byte{0x00}, 16)...)
}

func TestValidateVideoWithinLimit(t *testing.T) {
	v := &Validator{Prober: fakeProber{duration: 12.3}, MaxDurationSec: 30}

	duration, err := v.ValidateVideo(bytes.NewReader(mp4Header("isom")))
	if err != nil {
		t.Fatalf("ValidateVideo: %v", err)
	}
	if duration != 12.3 {
		t.Fatalf("duration = %v, want 12.3", duration)
	}
}

func TestValidateVideoOverLimit(t *testing.T) {
	v := &Validator{Prober: fakeProber{duration: 30.4}, MaxDurationSec: 30}

	if _, err := v.ValidateVideo(bytes.NewReader(mp4Header("isom"))); !errors.Is(err, ErrDurationExceeded) {
		t.Fatalf("expected ErrDurationExceeded, got %v", err)
	}
}

func TestValidateVideoExactLimit(t *testing.T) {
	v := &Validator{Prober: fakeProber{duration: 30}, MaxDurationSec: 30}

	if _, err := v.ValidateVideo(bytes.NewReader(mp4Header("isom"))); err != nil {
		t.Fatalf("30s video should pass a 30s ceiling: %v", err)
	}
}

// DetectContentType only maps ftyp brands starting with "mp4" to video/mp4,
// so brands like isom and avc1 must be accepted off the ftyp box itself.
func TestValidateVideoAcceptsCommonBrands(t *testing.T) {
	v := &Validator{Prober: fakeProber{duration: 10}, MaxDurationSec: 30}

	for _, brand := range []string{"isom", "avc1", "mp41", "mp42"} {
		if _, err := v.ValidateVideo(bytes.NewReader(mp4Header(brand))); err != nil {
			t.Fatalf("brand %s: %v", brand, err)
		}
	}
}

func TestValidateVideoRejectsNonVideo(t *testing.T) {
	v := &Validator{Prober: fakeProber{duration: 1}, MaxDurationSec: 30}

	if _, err := v.ValidateVideo(bytes.NewReader(pngHeader())); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestValidateVideoRewindsReader(t *testing.T) {
	v := &Validator{Prober: fakeProber{duration: 5}, MaxDurationSec: 30}
	r := bytes.NewReader(mp4Header("isom"))

	if _, err := v.ValidateVideo(r); err != nil {
		t.Fatalf("ValidateVideo: %v", err)
	}
	if pos, _ := r.Seek(0, io.SeekCurrent); pos != 0 {
		t.Fatalf("reader position = %d after validation, want 0", pos)
	}
}

func TestValidateImage(t *testing.T) {
	v := NewValidator(30)

	kind, err := v.ValidateImage(bytes.NewReader(pngHeader()))
	if err != nil {
		t.Fatalf("ValidateImage: %v", err)
	}
	if kind != "image/png" {
		t.Fatalf("kind = %s, want image/png", kind)
	}

	if _, err := v.ValidateImage(bytes.NewReader(mp4Header("isom"))); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType for video stream, got %v", err)
	}
}
