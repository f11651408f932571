package audio

import (
	"os"
	"sync"
	"time"

	"murmur/wav"
)

// fakeChunkFrames is how many s16le frames each fake callback delivers.
const fakeChunkFrames = 1024

// FakeContext builds captures that replay a WAV file's PCM through the normal
// callback path. Instant mode delivers the whole file inside Start; realtime
// mode paces chunks at the capture sample rate. Either way the device keeps
// feeding silence afterwards until stopped, like a real microphone would.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > wav.HeaderSize {
		data = data[wav.HeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, audioDone: make(chan struct{})}, nil
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone is closed once the file's audio has been fully delivered. Tests
// wait on it before stopping a realtime capture.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() { f.SetCallback(nil) }

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

// deliver hands the next chunk to the callback and returns the new position.
func (f *FakeCapture) deliver(cb DataCallback, pos int) int {
	end := min(pos+fakeChunkFrames*2, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/2))
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	// audioDone is left as-is: callers may already be waiting on it.
	// Stop resets it for replay.

	if f.realtime {
		go f.replayLoop()
		return nil
	}

	if cb := f.callback(); cb != nil {
		for pos := 0; pos < len(f.pcm); {
			pos = f.deliver(cb, pos)
		}
	}
	close(f.audioDone)
	go f.silenceLoop()
	return nil
}

// silenceLoop keeps the callback fed after the file ran out, so a recording
// that outlives the file still sees a live device.
func (f *FakeCapture) silenceLoop() {
	defer close(f.feedDone)
	silence := make([]byte, fakeChunkFrames*2)
	for {
		select {
		case <-f.stopCh:
			return
		case <-time.After(time.Millisecond):
		}
		if cb := f.callback(); cb != nil {
			cb(silence, fakeChunkFrames)
		}
	}
}

// replayLoop paces the file at the capture sample rate, closes audioDone at
// the end of the file, then switches to silence.
func (f *FakeCapture) replayLoop() {
	defer close(f.feedDone)
	interval := time.Duration(fakeChunkFrames) * time.Second / time.Duration(wav.SampleRate)
	silence := make([]byte, fakeChunkFrames*2)
	pos := 0
	finished := false

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		cb := f.callback()
		if cb == nil {
			time.Sleep(time.Millisecond)
			continue
		}

		if pos < len(f.pcm) {
			pos = f.deliver(cb, pos)
		} else {
			if !finished {
				finished = true
				close(f.audioDone)
			}
			cb(silence, fakeChunkFrames)
		}

		select {
		case <-f.stopCh:
			return
		case <-time.After(interval):
		}
	}
}

func (f *FakeCapture) Stop() {
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	if f.feedDone != nil {
		<-f.feedDone
	}
	f.audioDone = make(chan struct{}) // reset for replay
}

func (f *FakeCapture) Close() {}
