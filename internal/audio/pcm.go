package audio

import "encoding/binary"

// DecodePCM16 reinterprets little-endian bytes as signed 16-bit samples.
// A trailing odd byte is ignored.
func DecodePCM16(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

// EncodePCM16 serializes samples as little-endian bytes.
func EncodePCM16(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// Downmix averages interleaved channels into a single mono channel.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for f := range frames {
		var sum int
		for c := range channels {
			sum += int(samples[f*channels+c])
		}
		out[f] = int16(sum / channels)
	}
	return out
}

// ToMono24k prepares a parsed utterance for the upstream: mono, 16-bit, 24 kHz.
// Recordings at an unsupported rate fail with ErrUnsupportedRate.
func ToMono24k(w WAV) ([]int16, error) {
	mono := Downmix(w.Samples, w.Channels)
	if w.SampleRate == DefaultSampleRate {
		return mono, nil
	}
	return ResamplePCM16(mono, w.SampleRate, DefaultSampleRate)
}
