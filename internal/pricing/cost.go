package pricing

import (
	"fmt"
	"math"
)

// Quality is an output-resolution tier affecting credit cost.
type Quality string

const (
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
	Quality2K    Quality = "2K"
	Quality4K    Quality = "4K"
)

// MinimumCost is the floor shown and enforced while no video is selected
// and the duration is still unknown.
const MinimumCost = 5

// ErrUnknownQuality is returned for a tier outside the enumerated set.
var ErrUnknownQuality = fmt.Errorf("unknown quality tier")

// ParseQuality validates a raw tier string against the enumerated set.
func ParseQuality(s string) (Quality, error) {
	switch Quality(s) {
	case Quality720p, Quality1080p, Quality2K, Quality4K:
		return Quality(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownQuality, s)
}

// Multiplier returns the credit multiplier for a quality tier.
func (q Quality) Multiplier() float64 {
	switch q {
	case Quality2K:
		return 1.5
	case Quality4K:
		return 2
	default:
		return 1
	}
}

// Cost computes the credit cost for a video of the given duration at the
// given tier: ceil(ceil(duration) * multiplier). The duration is rounded up
// to the next whole second before the multiplier is applied.
func Cost(durationSeconds float64, q Quality) int {
	whole := math.Ceil(durationSeconds)
	return int(math.Ceil(whole * q.Multiplier()))
}
