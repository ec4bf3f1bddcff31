package audio

import (
	"errors"
	"fmt"
	"math"
)

// Client recordings outside this range are not resampled.
const (
	MinSampleRate = 8000
	MaxSampleRate = 96000
)

// sincHalfWidth is the number of zero crossings kept on each side of the kernel.
const sincHalfWidth = 16

// ErrUnsupportedRate is returned for sample rates outside [MinSampleRate, MaxSampleRate].
var ErrUnsupportedRate = errors.New("audio: unsupported sample rate")

// SupportedRate reports whether rate can be resampled.
func SupportedRate(rate int) bool {
	return rate >= MinSampleRate && rate <= MaxSampleRate
}

// ResamplePCM16 converts mono 16-bit samples from srcRate to dstRate with a
// Blackman-windowed sinc. When downsampling the kernel is widened so it also
// acts as the anti-aliasing filter. Samples are returned as-is when the rates
// match.
func ResamplePCM16(samples []int16, srcRate, dstRate int) ([]int16, error) {
	if !SupportedRate(srcRate) || !SupportedRate(dstRate) {
		return nil, fmt.Errorf("%w: %d -> %d Hz", ErrUnsupportedRate, srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return samples, nil
	}

	step := float64(srcRate) / float64(dstRate)
	scale := min(1.0, float64(dstRate)/float64(srcRate))
	half := int(math.Ceil(sincHalfWidth / scale))

	outLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	out := make([]int16, outLen)
	for i := range out {
		t := float64(i) * step
		center := int(t)
		var acc, norm float64
		for k := center - half + 1; k <= center+half; k++ {
			if k < 0 || k >= len(samples) {
				continue
			}
			x := (t - float64(k)) * scale
			w := sinc(x) * blackman(x/sincHalfWidth)
			acc += w * float64(samples[k])
			norm += w
		}
		if norm == 0 {
			continue
		}
		out[i] = clamp16(acc / norm)
	}
	return out, nil
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// blackman is the window evaluated at x in [-1, 1]; zero outside.
func blackman(x float64) float64 {
	if x <= -1 || x >= 1 {
		return 0
	}
	p := math.Pi * (x + 1)
	return 0.42 - 0.5*math.Cos(p) + 0.08*math.Cos(2*p)
}

func clamp16(v float64) int16 {
	v = math.Round(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
