package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"taskvox/audio"
	"taskvox/beep"
	"taskvox/encoder"
	"taskvox/log"
	"taskvox/recognizer"
	"taskvox/tasks"
)

// printSink writes capture events as plain lines so test runs can be
// asserted with grep.
type printSink struct{}

func (printSink) ListeningStart()        { fmt.Println("LISTENING") }
func (printSink) ListeningStop()         { fmt.Println("IDLE") }
func (printSink) AudioLevel(float64)     {}
func (printSink) DeviceLine(text string) { fmt.Println("DEVICE: " + text) }
func (printSink) Notice(text string)     { fmt.Println("NOTICE: " + text) }

func (printSink) LiveText(text string) {
	if text == "" {
		fmt.Println("LIVE: (cleared)")
		return
	}
	fmt.Println("LIVE: " + text)
}

func (printSink) TaskAdded(t tasks.Task, dup bool) {
	line := "TASK: " + t.Title
	if lbl := t.DueLabel(); lbl != "" {
		line += " [" + lbl + "]"
	}
	if dup {
		line += " (duplicate)"
	}
	fmt.Println(line)
}

// runTestMode replays a WAV file through the whole capture pipeline in
// real time and drives it from stdin. With -say the recognizer is a
// scripted fake, so runs work without network or credentials.
func runTestMode(wavPath, say string, sensitivity float64, store *tasks.Store, rec recognizer.Recognizer) {
	beep.Disable()

	if say != "" {
		rec = recognizer.NewScripted(say, 150*time.Millisecond)
	}
	if rec == nil {
		fmt.Fprintln(os.Stderr, "Error: no recognizer; set DEEPGRAM_API_KEY or pass -say")
		os.Exit(1)
	}

	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	defer fakeCtx.Close()

	capture, err := fakeCtx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	sink := printSink{}
	session := newSpeechSession(rec, recognizer.Config{}, sensitivity, cueSink{sink}, func(r CaptureResult) {
		completeCapture(r, store, sink, nil, false)
	})
	defer session.Close()

	capture.SetCallback(func(data []byte, _ uint32) {
		session.HandleAudio(data)
	})
	if err := capture.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting capture: %v\n", err)
		os.Exit(1)
	}
	defer capture.Stop()

	sink.DeviceLine("mic: " + capture.DeviceName() + " (" + wavPath + ")")
	fmt.Println("READY")

	// The fake capture feeds silence after the WAV ends, so the silence
	// timeout finalizes naturally; stdin can force it earlier.
	audioDone := capture.(*audio.FakeCapture).AudioDone()
	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			switch strings.TrimSpace(scanner.Text()) {
			case "stop":
				session.Stop()
			case "list":
				printTaskList(store)
			case "quit":
				return
			}
		}
	}()

	select {
	case <-stdinDone:
	case <-audioDone:
		// Give the silence timeout room to fire and the task to land.
		deadline := time.After(silenceTimeoutDur + 3*time.Second)
		select {
		case <-stdinDone:
		case <-deadline:
		}
	}

	session.Stop()
	time.Sleep(200 * time.Millisecond)
	printTaskList(store)
	log.SessionEnd(countTasks(store))
	fmt.Println("DONE")
}

func printTaskList(store *tasks.Store) {
	if store == nil {
		return
	}
	list, err := store.List(20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tasks: %v\n", err)
		return
	}
	fmt.Printf("TASKS: %d\n", len(list))
	for _, t := range list {
		line := "- " + t.Title
		if lbl := t.DueLabel(); lbl != "" {
			line += " [" + lbl + "]"
		}
		fmt.Println(line)
	}
}

func countTasks(store *tasks.Store) int {
	if store == nil {
		return 0
	}
	list, err := store.List(0)
	if err != nil {
		return 0
	}
	return len(list)
}
