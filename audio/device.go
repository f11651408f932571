package audio

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// FindDevice resolves a capture device by exact name, for the -device flag.
// Returns nil when no device matches.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	for i := range devices {
		if devices[i].Name == name {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// SelectDevice prompts for a capture device, for the -setup flag. A single
// available device is returned without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no capture devices found")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	printList(devices, cursor, false)
	for {
		key, err := readKey()
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch key {
		case keyEnter:
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case keyInterrupt:
			fmt.Print("\r\n")
			term.Restore(fd, oldState)
			os.Exit(130)
		case keyUp:
			if cursor > 0 {
				cursor--
			}
		case keyDown:
			if cursor < len(devices)-1 {
				cursor++
			}
		}
		printList(devices, cursor, true)
	}
}

const (
	keyNone = iota
	keyEnter
	keyInterrupt
	keyUp
	keyDown
)

func readKey() (int, error) {
	buf := make([]byte, 3)
	n, err := os.Stdin.Read(buf)
	if err != nil {
		return keyNone, err
	}
	if n == 1 {
		switch buf[0] {
		case '\r':
			return keyEnter, nil
		case 0x03:
			return keyInterrupt, nil
		case 'k':
			return keyUp, nil
		case 'j':
			return keyDown, nil
		}
	}
	if n == 3 && buf[0] == 0x1b && buf[1] == '[' {
		switch buf[2] {
		case 'A':
			return keyUp, nil
		case 'B':
			return keyDown, nil
		}
	}
	return keyNone, nil
}

func printList(devices []DeviceInfo, cursor int, redraw bool) {
	var b strings.Builder
	if redraw {
		fmt.Fprintf(&b, "\x1b[%dA", len(devices)+2)
	}
	b.WriteString("\r\x1b[J")
	b.WriteString("Select microphone (arrows or j/k, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		marker, reset := "  ", ""
		if i == cursor {
			marker, reset = "\x1b[1;36m> ", "\x1b[0m"
		}
		warn := ""
		if IsBluetooth(d.Name) {
			warn = "  (Bluetooth: reduced quality)"
		}
		fmt.Fprintf(&b, "  %s%s%s%s\r\n", marker, d.Name, reset, warn)
	}
	fmt.Print(b.String())
}
