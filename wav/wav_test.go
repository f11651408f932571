package wav

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func pcmContainer(samples []int16) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return Encode(pcm)
}

func TestDecodeRange(t *testing.T) {
	in := []int16{-32768, -16384, -1, 0, 1, 16384, 32767}
	got, err := Decode(pcmContainer(in))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d samples, want %d", len(got), len(in))
	}
	for i, f := range got {
		if f < -1.0 || f > 1.0 {
			t.Errorf("sample %d = %v out of [-1, 1]", i, f)
		}
	}
	if got[0] != -1.0 {
		t.Errorf("min sample = %v, want -1.0", got[0])
	}
	if got[3] != 0 {
		t.Errorf("zero sample = %v, want 0", got[3])
	}
	if math.Abs(float64(got[6])-32767.0/32768.0) > 1e-6 {
		t.Errorf("max sample = %v, want %v", got[6], 32767.0/32768.0)
	}
}

func TestDecodeHeaderOnly(t *testing.T) {
	got, err := Decode(pcmContainer(nil))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d samples, want 0", len(got))
	}
}

func TestDecodeTruncated(t *testing.T) {
	var de *DecodeError
	if _, err := Decode(make([]byte, HeaderSize-1)); !errors.As(err, &de) {
		t.Errorf("short container: err = %v, want DecodeError", err)
	}
	if _, err := Decode(nil); !errors.As(err, &de) {
		t.Errorf("nil container: err = %v, want DecodeError", err)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	var de *DecodeError

	// Right size, wrong content: not a WAV container at all.
	junk := make([]byte, HeaderSize+4)
	if _, err := Decode(junk); !errors.As(err, &de) {
		t.Errorf("zeroed header: err = %v, want DecodeError", err)
	}

	// Corrupted magic on an otherwise valid container.
	c := pcmContainer([]int16{1, 2, 3})
	copy(c[8:12], "AIFF")
	if _, err := Decode(c); !errors.As(err, &de) {
		t.Errorf("wrong format tag: err = %v, want DecodeError", err)
	}
}

func TestDecodeOddBody(t *testing.T) {
	c := append(pcmContainer([]int16{100}), 0x7f)
	var de *DecodeError
	if _, err := Decode(c); !errors.As(err, &de) {
		t.Errorf("odd body: err = %v, want DecodeError", err)
	}
}

func TestDurationSeconds(t *testing.T) {
	if d := DurationSeconds(32000, 16000); d != 2.0 {
		t.Errorf("DurationSeconds = %v, want 2.0", d)
	}
	if d := DurationSeconds(100, 0); d != 0 {
		t.Errorf("zero rate: got %v, want 0", d)
	}
}

func TestHeaderFields(t *testing.T) {
	h := Header(320)
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" {
		t.Fatalf("bad magic: %q %q", h[0:4], h[8:12])
	}
	if rate := binary.LittleEndian.Uint32(h[24:]); rate != SampleRate {
		t.Errorf("sample rate = %d, want %d", rate, SampleRate)
	}
	if n := binary.LittleEndian.Uint32(h[40:]); n != 320 {
		t.Errorf("data size = %d, want 320", n)
	}
}
