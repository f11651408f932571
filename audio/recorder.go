package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"murmur/wav"
)

// Recorder accumulates PCM from a capture callback and finalizes it as a
// WAV container. One recorder per recording; not reusable after Stop.
type Recorder struct {
	device CaptureDevice

	mu      sync.Mutex
	pcm     []byte
	tap     DataCallback
	stopped bool
}

// NewRecorder attaches to the capture device and starts receiving frames.
// The device itself is started by the caller.
func NewRecorder(device CaptureDevice) *Recorder {
	r := &Recorder{device: device}
	device.SetCallback(r.onData)
	return r
}

func (r *Recorder) onData(data []byte, frameCount uint32) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.pcm = append(r.pcm, data...)
	tap := r.tap
	r.mu.Unlock()

	if tap != nil {
		tap(data, frameCount)
	}
}

// SetTap registers a secondary consumer of the captured chunks, such as a
// speech detector. Set before the device starts.
func (r *Recorder) SetTap(tap DataCallback) {
	r.mu.Lock()
	r.tap = tap
	r.mu.Unlock()
}

// Stop detaches from the device. Frames arriving after Stop are dropped.
func (r *Recorder) Stop() {
	r.device.ClearCallback()
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
}

// Frames returns the number of captured sample frames so far.
func (r *Recorder) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.pcm) / 2)
}

// DurationSeconds returns the captured audio length so far.
func (r *Recorder) DurationSeconds() float64 {
	return wav.DurationSeconds(r.Frames(), wav.SampleRate)
}

// Bytes returns the capture as a complete WAV container.
func (r *Recorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return wav.Encode(r.pcm)
}

// Save writes the container to dir with a timestamped name and returns the
// path. dir is created if missing.
func (r *Recorder) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("recording dir: %w", err)
	}
	path := filepath.Join(dir, time.Now().Format("20060102-150405")+".wav")
	if err := os.WriteFile(path, r.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write recording: %w", err)
	}
	return path, nil
}
