package session

import "time"

const (
	silenceTick        = 100 * time.Millisecond
	silenceWarnAfter   = 8 * time.Second
	silenceStopAfter   = 30 * time.Second
	speechMinRatio     = 0.10
	speechResumedRatio = 0.25 // higher threshold to clear a warning (hysteresis)
)

type silenceEvent int

const (
	silenceNone silenceEvent = iota
	silenceWarn
	silenceResumed
	silenceAutoStop // prolonged silence, stop the recording
)

// silenceWatch decides when a recording has gone quiet for too long. One
// Tick per polling interval with whether that interval contained speech.
type silenceWatch struct {
	warnAt   int
	windowSz int

	ticks       int
	window      []bool
	speechCount int
	warned      bool
}

func newSilenceWatch() *silenceWatch {
	windowSz := int(silenceStopAfter / silenceTick)
	return &silenceWatch{
		warnAt:   int(silenceWarnAfter / silenceTick),
		windowSz: windowSz,
		window:   make([]bool, windowSz),
	}
}

// ratio is the speech fraction over the last n ticks.
func (w *silenceWatch) ratio(n int) float64 {
	if w.ticks < n {
		n = w.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if w.window[(w.ticks-1-i+w.windowSz)%w.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (w *silenceWatch) Tick(hasSpeech bool) silenceEvent {
	idx := w.ticks % w.windowSz
	if w.ticks >= w.windowSz && w.window[idx] {
		w.speechCount--
	}
	w.window[idx] = hasSpeech
	if hasSpeech {
		w.speechCount++
	}
	w.ticks++

	r := w.ratio(w.warnAt)

	if w.ticks >= w.warnAt && r < speechMinRatio && !w.warned {
		w.warned = true
		return silenceWarn
	}
	if w.warned && r >= speechResumedRatio {
		w.warned = false
		return silenceResumed
	}
	if w.ticks >= w.windowSz && float64(w.speechCount)/float64(w.windowSz) < speechMinRatio {
		return silenceAutoStop
	}
	return silenceNone
}
