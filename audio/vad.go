package audio

import (
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"murmur/wav"
)

const (
	vadMode       = 3 // most aggressive filtering
	vadFrameMs    = 20
	vadFrameBytes = wav.SampleRate * vadFrameMs / 1000 * 2
	vadDebounce   = 3 // consecutive speech frames to confirm voice
)

// SpeechDetector classifies captured PCM into speech and silence. Feed it
// chunks through Process (usually as a Recorder tap) and poll
// SpeechSinceLastPoll from a ticker.
type SpeechDetector struct {
	vad *webrtcvad.VAD

	mu            sync.Mutex
	buf           []byte
	voiceDetected bool
	speechRun     int
	totalFrames   int
	speechFrames  int
	pollTotal     int
	pollSpeech    int
}

func NewSpeechDetector() (*SpeechDetector, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, err
	}
	if err := v.SetMode(vadMode); err != nil {
		return nil, err
	}
	return &SpeechDetector{vad: v}, nil
}

// Process consumes a captured chunk. Incomplete trailing frames are buffered
// until the next chunk arrives.
func (d *SpeechDetector) Process(data []byte, _ uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = append(d.buf, data...)
	for len(d.buf) >= vadFrameBytes {
		frame := d.buf[:vadFrameBytes]
		d.buf = d.buf[vadFrameBytes:]

		active, err := d.vad.Process(wav.SampleRate, frame)
		if err != nil {
			continue
		}
		d.totalFrames++
		if active {
			d.speechFrames++
			d.speechRun++
			if d.speechRun >= vadDebounce {
				d.voiceDetected = true
			}
		} else {
			d.speechRun = 0
		}
	}
}

// VoiceDetected reports whether confirmed speech has appeared at all.
func (d *SpeechDetector) VoiceDetected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voiceDetected
}

const speechThreshold = 0.10 // fraction of frames that must be speech

// SpeechSinceLastPoll reports whether the audio since the previous poll
// contained speech. An empty interval counts as silent.
func (d *SpeechDetector) SpeechSinceLastPoll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.totalFrames - d.pollTotal
	s := d.speechFrames - d.pollSpeech
	d.pollTotal, d.pollSpeech = d.totalFrames, d.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechThreshold
}

// Reset clears detection state between recordings.
func (d *SpeechDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf = d.buf[:0]
	d.voiceDetected = false
	d.speechRun = 0
	d.totalFrames = 0
	d.speechFrames = 0
	d.pollTotal = 0
	d.pollSpeech = 0
}
