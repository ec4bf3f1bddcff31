package audio

// Duration returns the speaking time represented by mono samples at sampleRate.
func Duration(samples []int16, sampleRate int) float64 {
	if sampleRate <= 0 || len(samples) == 0 {
		return 0
	}
	return float64(len(samples)) / float64(sampleRate)
}

// DurationFrames is Duration for interleaved multi-channel samples.
func DurationFrames(samples []int16, sampleRate, channels int) float64 {
	if channels <= 1 {
		return Duration(samples, sampleRate)
	}
	return Duration(samples, sampleRate) / float64(channels)
}

// PCM16Duration measures a raw little-endian PCM16 mono buffer.
func PCM16Duration(data []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(data)/2) / float64(sampleRate)
}
