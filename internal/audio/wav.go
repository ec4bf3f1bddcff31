package audio

import (
	"encoding/binary"
	"log/slog"
)

// Defaults reported when a buffer carries no usable format chunk.
const (
	DefaultSampleRate    = 24000
	DefaultChannels      = 1
	DefaultBitsPerSample = 16
)

const chunkHeaderLen = 8

// WAV is the decoded content of a RIFF/WAVE buffer. An empty Samples slice
// means there was nothing to measure; it is not an error.
type WAV struct {
	Samples       []int16
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Duration returns the playback length of the PCM payload in seconds.
func (w WAV) Duration() float64 {
	return DurationFrames(w.Samples, w.SampleRate, w.Channels)
}

func emptyWAV() WAV {
	return WAV{
		SampleRate:    DefaultSampleRate,
		Channels:      DefaultChannels,
		BitsPerSample: DefaultBitsPerSample,
	}
}

// ParseWAV locates the "fmt " and "data" chunks of a RIFF/WAVE buffer and
// returns the PCM payload as little-endian int16 samples. Malformed or
// truncated input degrades to an empty result carrying whatever format fields
// were found.
func ParseWAV(data []byte) WAV {
	out := emptyWAV()

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		slog.Debug("wav: missing RIFF/WAVE header", "bytes", len(data))
		return out
	}

	fmtOff, fmtSize, ok := findChunk(data, 12, "fmt ")
	if !ok {
		slog.Debug("wav: no fmt chunk", "bytes", len(data))
		return out
	}
	if fmtOff+chunkHeaderLen+16 <= len(data) {
		out.Channels = int(binary.LittleEndian.Uint16(data[fmtOff+10:]))
		out.SampleRate = int(binary.LittleEndian.Uint32(data[fmtOff+12:]))
		out.BitsPerSample = int(binary.LittleEndian.Uint16(data[fmtOff+22:]))
	}

	dataOff, dataSize, ok := findChunk(data, fmtOff+chunkHeaderLen+fmtSize, "data")
	if !ok {
		slog.Debug("wav: no data chunk after fmt", "bytes", len(data))
		return out
	}

	start := dataOff + chunkHeaderLen
	end := start + dataSize
	if end > len(data) {
		slog.Debug("wav: data chunk truncated", "declared", dataSize, "available", len(data)-start)
		return out
	}
	out.Samples = DecodePCM16(data[start:end])
	return out
}

// findChunk walks RIFF sub-chunks from off and returns the offset and declared
// size of the first chunk with the given id.
func findChunk(data []byte, off int, id string) (int, int, bool) {
	for off >= 0 && off+chunkHeaderLen <= len(data) {
		size := int(binary.LittleEndian.Uint32(data[off+4:]))
		if string(data[off:off+4]) == id {
			return off, size, true
		}
		next := off + chunkHeaderLen + size
		if size < 0 || next <= off {
			return 0, 0, false
		}
		off = next
	}
	return 0, 0, false
}

// EncodeWAV wraps mono int16 samples in a canonical 44-byte-header WAV file.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataLen := len(samples) * 2
	totalLen := 44 + dataLen

	buf := make([]byte, totalLen)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(totalLen-8))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2)) // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], 2)                    // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                   // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], EncodePCM16(samples))

	return buf
}
