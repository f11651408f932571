package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"murmur/audio"
	"murmur/config"
	"murmur/deliver"
	"murmur/doctor"
	"murmur/engine"
	"murmur/enhance"
	"murmur/history"
	"murmur/hotkey"
	"murmur/log"
	"murmur/session"
	"murmur/shutdown"
	"murmur/snapshot"
	"murmur/wav"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(controller *session.Controller, records *history.MemoryStore) {
	shutdownOnce.Do(func() {
		if controller != nil {
			controller.Cancel()
			controller.Wait()
		}
		if records != nil && records.Len() > 0 {
			log.SessionEnd(records.Len())
		}
		log.Close()
		os.Exit(0)
	})
}

func main() {
	configFlag := flag.String("config", "", "Config file path (default: murmur.yaml in cwd or user config dir)")
	modelFlag := flag.String("model", "", "Transcription model id (overrides config)")
	serverFlag := flag.String("server", "", "Whisper server URL (default "+engine.DefaultServerURL+")")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	autoPasteFlag := flag.Bool("autopaste", true, "Paste at cursor after transcription")
	autoCopyFlag := flag.Bool("autocopy", true, "Copy transcription to clipboard")
	recordingsFlag := flag.String("recordings", "", "Keep captured WAV files in this directory")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("murmur %s\n", version)
		os.Exit(0)
	}

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *modelFlag != "" {
		settings.Set("model", *modelFlag)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "autopaste":
			settings.Set("paste_enabled", *autoPasteFlag)
		case "autocopy":
			settings.Set("auto_copy", *autoCopyFlag)
		}
	})

	if *doctorFlag {
		os.Exit(doctor.Run(settings, *serverFlag))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(settings.ModelID(), settings.Enhancement().Provider)

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: murmur -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(settings, args[0])
		return
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		selectedDevice, err = audio.FindDevice(audioCtx, *deviceFlag)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using system default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Falling back to default device")
			selectedDevice = nil
		}
	}
	if selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name) {
		fmt.Fprintln(os.Stderr, "Warning: Bluetooth microphones capture at reduced quality")
	}

	capture, err := audioCtx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: wav.SampleRate,
		Channels:   wav.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()
	log.Info("recording_device: " + capture.DeviceName())

	eng := engine.NewServer(*serverFlag)
	snaps := snapshot.NewSource(settings.ClipboardContext, settings.ScreenContext, nil)
	sink := deliver.NewSink(settings.PasteEnabled, settings.AutoCopy)
	records := history.NewMemoryStore()
	controller := session.NewController(
		eng, capture, settings, enhance.NewClient(), sink, snaps, records,
		session.Options{RecordingsDir: *recordingsFlag},
	)

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	toggleHK := hotkey.NewToggle()
	if err := toggleHK.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Fprintf(os.Stderr, "Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer toggleHK.Unregister()

	cancelHK := hotkey.NewCancel()
	if err := cancelHK.Register(); err != nil {
		// Toggle still works; cancel falls back to signals.
		log.Warnf("cancel hotkey register error: %v", err)
	} else {
		defer cancelHK.Unregister()
	}

	fmt.Println("murmur ready: ctrl+shift+space to dictate, ctrl+shift+x to cancel")

	ctx := context.Background()
	for {
		select {
		case <-toggleHK.Keydown():
			if err := controller.Toggle(ctx); err != nil {
				log.Errorf("toggle: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		case <-cancelHK.Keydown():
			log.Info("cancel_requested")
			controller.Cancel()
		case <-sigChan:
			gracefulShutdown(controller, records)
		}
	}
}
