package audio

import (
	"encoding/binary"
	"testing"
)

func ramp(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i%2000 - 1000)
	}
	return out
}

func TestParseWAVRoundTrip(t *testing.T) {
	samples := ramp(48000)
	w := ParseWAV(EncodeWAV(samples, 24000))

	if len(w.Samples) != len(samples) {
		t.Fatalf("samples=%d, want %d", len(w.Samples), len(samples))
	}
	if w.SampleRate != 24000 || w.Channels != 1 || w.BitsPerSample != 16 {
		t.Fatalf("format=%d/%d/%d", w.SampleRate, w.Channels, w.BitsPerSample)
	}
	for i := range samples {
		if w.Samples[i] != samples[i] {
			t.Fatalf("sample %d=%d, want %d", i, w.Samples[i], samples[i])
		}
	}
	if got := Duration(w.Samples, w.SampleRate); got != 2.0 {
		t.Fatalf("duration=%v, want 2.0", got)
	}
}

func TestParseWAVReportsSampleRate(t *testing.T) {
	for _, rate := range []int{8000, 16000, 44100, 48000} {
		w := ParseWAV(EncodeWAV(ramp(rate/10), rate))
		if w.SampleRate != rate {
			t.Fatalf("rate=%d, want %d", w.SampleRate, rate)
		}
		if len(w.Samples) != rate/10 {
			t.Fatalf("samples=%d, want %d", len(w.Samples), rate/10)
		}
		want := float64(rate/10) / float64(rate)
		if got := w.Duration(); got != want {
			t.Fatalf("duration=%v, want %v", got, want)
		}
	}
}

func TestParseWAVRejectsBadHeader(t *testing.T) {
	good := EncodeWAV(ramp(100), 24000)

	noRIFF := append([]byte(nil), good...)
	copy(noRIFF[0:4], "RIFX")
	noWAVE := append([]byte(nil), good...)
	copy(noWAVE[8:12], "AVI ")

	cases := map[string][]byte{
		"nil":     nil,
		"short":   []byte("RIFF"),
		"no riff": noRIFF,
		"no wave": noWAVE,
		"garbage": []byte("this is definitely not audio data at all"),
	}
	for name, data := range cases {
		w := ParseWAV(data)
		if len(w.Samples) != 0 {
			t.Fatalf("%s: samples=%d, want 0", name, len(w.Samples))
		}
		if w.SampleRate != DefaultSampleRate || w.Channels != DefaultChannels || w.BitsPerSample != DefaultBitsPerSample {
			t.Fatalf("%s: defaults not applied: %+v", name, w)
		}
	}
}

func TestParseWAVFmtWithoutData(t *testing.T) {
	full := EncodeWAV(ramp(100), 16000)
	truncated := full[:36] // header + fmt chunk, no data chunk

	w := ParseWAV(truncated)
	if len(w.Samples) != 0 {
		t.Fatalf("samples=%d, want 0", len(w.Samples))
	}
	if w.SampleRate != 16000 || w.Channels != 1 || w.BitsPerSample != 16 {
		t.Fatalf("fmt fields not populated: %+v", w)
	}
}

func TestParseWAVTruncatedData(t *testing.T) {
	full := EncodeWAV(ramp(100), 24000)
	w := ParseWAV(full[:len(full)-10])
	if len(w.Samples) != 0 {
		t.Fatalf("samples=%d, want 0 for truncated data chunk", len(w.Samples))
	}
}

func TestParseWAVSkipsUnknownChunks(t *testing.T) {
	samples := ramp(240)
	plain := EncodeWAV(samples, 24000)

	// Insert a LIST chunk between fmt and data.
	list := make([]byte, 8+6)
	copy(list[0:4], "LIST")
	binary.LittleEndian.PutUint32(list[4:8], 6)
	copy(list[8:], "INFOab")

	var buf []byte
	buf = append(buf, plain[:36]...)
	buf = append(buf, list...)
	buf = append(buf, plain[36:]...)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(buf)-8))

	w := ParseWAV(buf)
	if len(w.Samples) != len(samples) {
		t.Fatalf("samples=%d, want %d", len(w.Samples), len(samples))
	}
}

func TestParseWAVHugeChunkSize(t *testing.T) {
	buf := EncodeWAV(ramp(10), 24000)
	binary.LittleEndian.PutUint32(buf[16:20], 0xFFFFFFF0) // fmt size points past the buffer

	w := ParseWAV(buf)
	if len(w.Samples) != 0 {
		t.Fatalf("samples=%d, want 0", len(w.Samples))
	}
}

func TestParseWAVNeverPanicsOnPrefixes(t *testing.T) {
	buf := EncodeWAV(ramp(64), 24000)
	for i := range len(buf) {
		_ = ParseWAV(buf[:i])
	}
}
