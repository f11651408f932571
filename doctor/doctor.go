// Package doctor runs interactive system diagnostics: hotkey delivery,
// microphone capture, whisper server reachability, enhancement provider
// configuration, and clipboard access.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"time"

	cb "github.com/atotto/clipboard"

	"murmur/audio"
	"murmur/config"
	"murmur/engine"
	"murmur/hotkey"
	"murmur/wav"
)

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run(settings *config.Store, serverURL string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("murmur doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true
	if !checkHotkey() {
		allPass = false
	}
	if allPass && !checkMicrophone() {
		allPass = false
	}
	if !checkServer(settings, serverURL) {
		allPass = false
	}
	checkEnhancement(settings)
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[1/4] Hotkey detection")
	fmt.Println("Press Ctrl+Shift+Space...")

	hk := hotkey.NewToggle()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		// Wait for keyup so the chord doesn't leak into the next step
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkMicrophone() bool {
	fmt.Println()
	fmt.Println("[2/4] Microphone capture")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = " (Bluetooth: reduced quality)"
		}
		fmt.Printf("  found: %s%s\n", d.Name, tag)
	}

	capture, err := ctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: wav.SampleRate,
		Channels:   wav.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: cannot open capture device: %v\n", err)
		return false
	}
	defer capture.Close()

	recorder := audio.NewRecorder(capture)
	detector, detErr := audio.NewSpeechDetector()
	if detErr == nil {
		recorder.SetTap(detector.Process)
	}

	fmt.Print("  Recording 3 seconds, say something")
	if err := capture.Start(); err != nil {
		fmt.Printf("\n  FAIL: capture start: %v\n", err)
		return false
	}
	for i := 0; i < 6; i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	capture.Stop()
	recorder.Stop()
	fmt.Println(" done")

	if recorder.Frames() == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}
	fmt.Printf("  captured %.1f KB (%.1fs)\n",
		float64(len(recorder.Bytes()))/1024, recorder.DurationSeconds())
	if detErr == nil {
		if detector.VoiceDetected() {
			fmt.Println("  PASS: speech detected in capture")
		} else {
			fmt.Println("  WARN: no speech detected (quiet room, or wrong device?)")
		}
	}
	return true
}

func checkServer(settings *config.Store, serverURL string) bool {
	fmt.Println()
	fmt.Println("[3/4] Whisper server")

	eng := engine.NewServer(serverURL)
	model := settings.ModelID()
	if model == "" {
		// No model configured: just probe the endpoint.
		url := serverURL
		if url == "" {
			url = engine.DefaultServerURL
		}
		client := &http.Client{Timeout: 3 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			fmt.Printf("  FAIL: server unreachable at %s: %v\n", url, err)
			return false
		}
		resp.Body.Close()
		fmt.Println("  PASS: server reachable (no model configured to load)")
		return true
	}

	loadCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	fmt.Printf("  loading model %q...\n", model)
	if err := eng.LoadModel(loadCtx, model); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Println("  PASS: model loaded")
	return true
}

func checkEnhancement(settings *config.Store) {
	fmt.Println()
	fmt.Println("[i] Enhancement provider")

	cfg := settings.Enhancement()
	switch {
	case !cfg.Enabled:
		fmt.Println("  disabled (raw transcriptions will be delivered)")
	case cfg.Configured():
		fmt.Printf("  configured: provider=%s model=%s\n", cfg.Provider, cfg.Model)
	default:
		fmt.Printf("  WARN: enabled but not configured (provider=%q, missing API key?)\n", cfg.Provider)
	}
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[4/4] Clipboard access")

	previous, prevErr := cb.ReadAll()

	sentinel := "murmur-doctor-" + time.Now().Format("150405")
	if err := cb.WriteAll(sentinel); err != nil {
		fmt.Printf("  FAIL: clipboard write: %v\n", err)
		return false
	}
	got, err := cb.ReadAll()
	if err != nil {
		fmt.Printf("  FAIL: clipboard read: %v\n", err)
		return false
	}
	if got != sentinel {
		fmt.Printf("  FAIL: round-trip mismatch (got %q)\n", got)
		return false
	}

	if prevErr == nil && previous != "" {
		if err := cb.WriteAll(previous); err != nil {
			fmt.Printf("  WARN: could not restore previous clipboard: %v\n", err)
		}
	}
	fmt.Println("  PASS: clipboard round-trip verified")
	return true
}
