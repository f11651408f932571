// Package wav reads and writes the fixed-header 16-bit PCM container used by
// the capture pipeline. 16 kHz mono s16le throughout.
package wav

import (
	"encoding/binary"
	"fmt"
)

const (
	HeaderSize = 44
	SampleRate = 16000
	Channels   = 1

	bytesPerSample = 2
)

// DecodeError reports a truncated or malformed container. Never retried.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "wav decode: " + e.Reason
}

// Decode converts a captured container into normalized samples, one float per
// frame, scaled from int16 range into [-1.0, 1.0]. The fixed-size header is
// skipped; a header-only container yields an empty slice.
func Decode(container []byte) ([]float32, error) {
	if len(container) < HeaderSize {
		return nil, &DecodeError{Reason: fmt.Sprintf("container truncated: %d bytes, want at least %d", len(container), HeaderSize)}
	}
	if string(container[0:4]) != "RIFF" || string(container[8:12]) != "WAVE" {
		return nil, &DecodeError{Reason: "missing RIFF/WAVE magic"}
	}
	body := container[HeaderSize:]
	if len(body)%bytesPerSample != 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("odd trailing byte in %d-byte body", len(body))}
	}

	samples := make([]float32, len(body)/bytesPerSample)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(body[i*bytesPerSample:]))
		f := float32(s) / 32768.0
		if f > 1.0 {
			f = 1.0
		}
		samples[i] = f
	}
	return samples, nil
}

// DurationSeconds returns the audio length of n frames at the given rate.
func DurationSeconds(frames uint64, sampleRate uint32) float64 {
	if sampleRate == 0 {
		return 0
	}
	return float64(frames) / float64(sampleRate)
}

// Encode wraps raw s16le PCM in a container the decoder accepts.
func Encode(pcm []byte) []byte {
	out := make([]byte, HeaderSize+len(pcm))
	writeHeader(out, uint32(len(pcm)))
	copy(out[HeaderSize:], pcm)
	return out
}

// Header returns just the container header for the given PCM byte length.
// Used when streaming the body to a file separately.
func Header(pcmBytes uint32) []byte {
	out := make([]byte, HeaderSize)
	writeHeader(out, pcmBytes)
	return out
}

func writeHeader(dst []byte, pcmBytes uint32) {
	le := binary.LittleEndian
	copy(dst[0:4], "RIFF")
	le.PutUint32(dst[4:], 36+pcmBytes)
	copy(dst[8:12], "WAVE")
	copy(dst[12:16], "fmt ")
	le.PutUint32(dst[16:], 16)            // fmt chunk size
	le.PutUint16(dst[20:], 1)             // PCM
	le.PutUint16(dst[22:], Channels)      // mono
	le.PutUint32(dst[24:], SampleRate)
	le.PutUint32(dst[28:], SampleRate*Channels*bytesPerSample) // byte rate
	le.PutUint16(dst[32:], Channels*bytesPerSample)            // block align
	le.PutUint16(dst[34:], 16)                                 // bits per sample
	copy(dst[36:40], "data")
	le.PutUint32(dst[40:], pcmBytes)
}
