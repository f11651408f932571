package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"murmur/audio"
	"murmur/config"
	"murmur/deliver"
	"murmur/engine"
	"murmur/enhance"
	"murmur/history"
	"murmur/hotkey"
	"murmur/log"
	"murmur/session"
	"murmur/snapshot"
	"murmur/wav"
)

// runTestMode drives the pipeline headlessly from stdin: a fake capture
// device replays a WAV file and a fake engine returns scripted text.
// Commands: KEYDOWN (toggle), CANCEL, WAIT, WAIT_AUDIO_DONE, SLEEP <ms>, QUIT.
func runTestMode(settings *config.Store, wavPath string) {
	defer log.Close()

	fakeCtx, err := audio.NewFakeContext(wavPath, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: wav.SampleRate, Channels: wav.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()
	fakeCapture := capture.(*audio.FakeCapture)

	text := os.Getenv("MURMUR_TEST_TEXT")
	if text == "" {
		text = "test transcription"
	}
	eng := engine.NewFake(text)
	if settings.ModelID() == "" {
		settings.Set("model", "fake")
	}
	settings.Set("silence_auto_stop", false)

	records := history.NewMemoryStore()
	snaps := snapshot.NewSource(settings.ClipboardContext, settings.ScreenContext, nil)
	sink := deliver.NewSink(settings.PasteEnabled, settings.AutoCopy)
	controller := session.NewController(
		eng, capture, settings, enhance.NewClient(), sink, snaps, records,
		session.Options{OnStateChange: func(s session.State) {
			fmt.Printf("STATE %s\n", s)
		}},
	)

	hk := hotkey.NewFake()

	// Stdin driver in background -- sends hotkey events, handles WAIT/SLEEP/QUIT
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch cmd {
			case "KEYDOWN":
				hk.SimKeydown()
			case "CANCEL":
				controller.Cancel()
			case "WAIT":
				controller.Wait()
			case "WAIT_AUDIO_DONE":
				<-fakeCapture.AudioDone()
			case "QUIT":
				controller.Wait()
				if last, err := records.Recent(1); err == nil && len(last) == 1 {
					fmt.Printf("TEXT %s\n", last[0].FinalText())
				}
				log.SessionEnd(records.Len())
				os.Exit(0)
			default:
				if strings.HasPrefix(cmd, "SLEEP ") {
					if ms, err := strconv.Atoi(cmd[6:]); err == nil {
						time.Sleep(time.Duration(ms) * time.Millisecond)
					}
				}
			}
		}
		os.Exit(0)
	}()

	ctx := context.Background()
	for range hk.Keydown() {
		if err := controller.Toggle(ctx); err != nil {
			log.Errorf("toggle: %v", err)
		}
	}
}
