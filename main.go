package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"taskvox/audio"
	"taskvox/beep"
	"taskvox/clipboard"
	"taskvox/encoder"
	"taskvox/log"
	"taskvox/recognizer"
	"taskvox/shutdown"
	"taskvox/tasks"
)

var version = "dev"

var (
	shutdownOnce sync.Once
	capturedN    atomic.Int64
)

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		log.SessionEnd(int(capturedN.Load()))
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

// cueSink layers the audible cues over whichever display sink is
// active: a short tick whenever a capture opens.
type cueSink struct{ EventSink }

func (c cueSink) ListeningStart() {
	go beep.PlayStart()
	c.EventSink.ListeningStart()
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix
}

func defaultSensitivity() float64 {
	if v := os.Getenv("TASKVOX_SENSITIVITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return 0.5
}

// completeCapture is the shared end of every finalized utterance: store
// the task, surface it, and keep the books. Empty captures only clear
// state.
func completeCapture(r CaptureResult, store *tasks.Store, sink EventSink, archive *utteranceArchive, copyClip bool) {
	if archive != nil {
		if r.Raw == "" {
			archive.Discard()
		} else if _, err := archive.Flush(); err != nil {
			log.Warnf("archive flush: %v", err)
		}
	}

	if r.Raw == "" {
		log.Info("empty_capture: " + r.By)
		return
	}
	if r.Title == "" {
		// Date phrases only, no task content.
		log.Info("dateonly_capture")
		sink.Notice("heard a date but no task")
		return
	}

	task, dup, err := store.Add(r.Title, r.Due)
	if err != nil {
		log.Errorf("store task: %v", err)
		sink.Notice("could not save task: " + err.Error())
		beep.PlayError()
		return
	}

	sink.TaskAdded(task, dup)
	if dup {
		log.Info("duplicate_task: " + task.Title)
	} else {
		capturedN.Add(1)
		due := ""
		if task.Due != nil {
			due = task.Due.Format("2006-01-02")
		}
		log.TaskCreated(task.Title, due)
		if copyClip {
			if err := clipboard.Copy(task.Title); err != nil {
				log.Warnf("clipboard: %v", err)
			}
		}
		go beep.PlayEnd()
	}
	log.Capture(log.CaptureMetrics{
		AudioS:     r.AudioS,
		TextLen:    len(r.Raw),
		HasDue:     r.Due != nil,
		Duplicate:  dup,
		FinalizeBy: r.By,
	})
}

func run() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	sensFlag := flag.Float64("sensitivity", defaultSensitivity(), "Voice detection sensitivity, 0 (least) to 1 (most)")
	dbFlag := flag.String("db", "", "Task database path (default: OS-specific location)")
	logPathFlag := flag.String("logpath", "", "Log directory path (default: OS-specific location, use ./ for current dir)")
	keepAudioFlag := flag.Bool("keepaudio", false, "Archive each utterance as FLAC next to the logs")
	clipFlag := flag.Bool("clip", true, "Copy each new task title to the clipboard")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	testFlag := flag.Bool("test", false, "Test mode: replay a WAV file headlessly")
	sayFlag := flag.String("say", "", "Test mode: scripted transcript instead of a live recognizer")
	langFlag := flag.String("lang", "en", "Language code for recognition (e.g., en, es, fr)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., localhost:6060)")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("taskvox %s\n", version)
		os.Exit(0)
	}

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

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	dbPath := *dbFlag
	if dbPath == "" {
		dbPath = tasks.DefaultDBPath()
	}
	store, err := tasks.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening task database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: taskvox -test [-say \"...\"] <wav-file>")
			os.Exit(1)
		}
		rec, recErr := recognizer.New()
		if recErr != nil && *sayFlag == "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", recErr)
			os.Exit(1)
		}
		runTestMode(args[0], *sayFlag, *sensFlag, store, rec)
		return
	}

	rec, err := recognizer.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
		if selectedDevice == nil {
			fmt.Fprintf(os.Stderr, "Warning: device %q not found, using default\n", *deviceFlag)
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Falling back to default device")
			selectedDevice = nil
		}
	}

	capture, err := ctx.NewCapture(selectedDevice, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()

	var archive *utteranceArchive
	if *keepAudioFlag {
		archive, err = newUtteranceArchive(filepath.Join(log.Dir(), "audio"))
		if err != nil {
			log.Warnf("audio archive disabled: %v", err)
			archive = nil
		}
	}

	var sink EventSink = nopSink{}
	if *tuiFlag {
		sink = tuiSink{}
	}

	session := newSpeechSession(rec, recognizer.Config{Language: *langFlag}, *sensFlag, cueSink{sink}, func(r CaptureResult) {
		completeCapture(r, store, sink, archive, *clipFlag)
	})
	defer session.Close()

	capture.SetCallback(func(data []byte, _ uint32) {
		session.HandleAudio(data)
		if archive != nil && session.Listening() {
			archive.Append(data)
		}
	})
	if err := capture.Start(); err != nil {
		log.Errorf("capture start error: %v", err)
		fmt.Fprintf(os.Stderr, "Error starting capture: %v\n", err)
		os.Exit(1)
	}
	defer capture.Stop()

	log.SessionStart(rec.Name(), capture.DeviceName())
	go beep.Init()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown()
	}()

	if !*tuiFlag {
		fmt.Printf("taskvox %s listening on %s (ctrl+c to quit)\n", version, capture.DeviceName())
		select {}
	}

	recent, err := store.List(taskPanelMax)
	if err != nil {
		log.Warnf("task list: %v", err)
	}
	tuiMu.Lock()
	tuiProgram = NewTUIProgram(recent, session.Stop)
	tuiMu.Unlock()

	go func() {
		<-tuiReady
		sink.DeviceLine(deviceLineText(selectedDevice))
	}()

	if _, err := tuiProgram.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}
	gracefulShutdown()
}

func main() {
	run()
}
