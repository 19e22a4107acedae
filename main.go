// main.go - Main entry point for the Siddler Engine

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/SiddlerEngine
License: GPLv3 or later
*/

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func boilerPlate() {
	fmt.Println("Siddler Engine - real-time SID register stream player")
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/SiddlerEngine")
	fmt.Println("License: GPLv3 or later")
}

func main() {
	var (
		device       string
		listen       string
		input        string
		sampleRate   int
		bufferFrames int
		queueCap     int
		clockHz      int
		model        string
		gain         float64
		backend      string
		wavPath      string
		scriptPath   string
		profile      string
		header12     bool
		noStatus     bool
		clockPct     int
		view         string
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&device, "device", "", "CDC serial device node (e.g. /dev/ttyACM0)")
	flagSet.StringVar(&listen, "listen", "", "TCP listen address (e.g. :6581)")
	flagSet.StringVar(&input, "input", "", "Stream file or FIFO to replay")
	flagSet.IntVar(&sampleRate, "sample-rate", DEFAULT_SAMPLE_RATE, "Audio sample rate in Hz")
	flagSet.IntVar(&bufferFrames, "buffer-frames", DEFAULT_BUFFER_FRAMES, "Stereo frames per audio buffer")
	flagSet.IntVar(&queueCap, "queue-cap", HOST_QUEUE_CAP, "Host event queue capacity")
	flagSet.IntVar(&clockHz, "clock", SID_CLOCK_PAL, "SID clock frequency in Hz")
	flagSet.StringVar(&model, "model", "6581", "Initial SID model: 6581, 8580 or split")
	flagSet.Float64Var(&gain, "gain", DEFAULT_OUTPUT_GAIN, "Output gain before the 16-bit clamp")
	flagSet.StringVar(&backend, "backend", AUDIO_BACKEND_OTO, "Audio backend: oto, sdl, alsa or none")
	flagSet.StringVar(&wavPath, "wav", "", "Record rendered audio to a WAV file")
	flagSet.StringVar(&scriptPath, "script", "", "Run a Lua automation script")
	flagSet.StringVar(&profile, "profile", "fdis", "Input profile: fdis, fdis8 or raw4")
	flagSet.BoolVar(&header12, "header12", false, "Expect the 12-byte padded FDIS header")
	flagSet.BoolVar(&noStatus, "no-status", false, "Disable the terminal status view")
	flagSet.IntVar(&clockPct, "clock-pct", 100, "Playback clock scale percent (20-300)")
	flagSet.StringVar(&view, "view", "status", "Initial debug view: status, usbq, sidq or hex")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: ./siddler_engine [-device /dev/ttyACM0 | -listen :6581 | -input stream.bin] [options]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			flagSet.Usage()
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	boilerPlate()

	sources := 0
	for _, s := range []string{device, listen, input} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		fmt.Println("Error: select at most one of -device, -listen, -input")
		os.Exit(1)
	}
	if sources == 0 && scriptPath == "" {
		fmt.Println("Error: no input; use -device, -listen, -input or -script")
		os.Exit(1)
	}

	cfg := DeviceConfig{
		SampleRate:   sampleRate,
		BufferFrames: bufferFrames,
		QueueCap:     queueCap,
		ClockHz:      float64(clockHz),
		OutputGain:   gain,
	}

	switch model {
	case "6581":
		cfg.Mode = SID_MODE_6581
	case "8580":
		cfg.Mode = SID_MODE_8580
	case "split":
		cfg.Mode = SID_MODE_SPLIT
	default:
		fmt.Printf("Error: unknown SID model %q\n", model)
		os.Exit(1)
	}

	switch profile {
	case "fdis":
		cfg.Profile = PROFILE_FDIS
		cfg.RecordProfile = RECORD_PROFILE_6
	case "fdis8":
		cfg.Profile = PROFILE_FDIS
		cfg.RecordProfile = RECORD_PROFILE_8
	case "raw4":
		cfg.Profile = PROFILE_RAW4
	default:
		fmt.Printf("Error: unknown profile %q\n", profile)
		os.Exit(1)
	}
	if header12 {
		cfg.HeaderProfile = HEADER_PROFILE_12
	}

	dev := NewDevice(cfg)

	if clockPct != 100 {
		if clockPct < 20 || clockPct > 300 {
			fmt.Println("Error: -clock-pct out of range 20-300")
			os.Exit(1)
		}
		dev.SetClockScalePPM(uint32(clockPct) * 10000)
	}
	switch view {
	case "status":
		// default
	case "usbq":
		dev.SetView(VIEW_USB_QUEUE)
	case "sidq":
		dev.SetView(VIEW_SID_QUEUE)
	case "hex":
		dev.SetView(VIEW_HEX)
	default:
		fmt.Printf("Error: unknown view %q\n", view)
		os.Exit(1)
	}

	var transport Transport
	var err error
	switch {
	case device != "":
		transport, err = NewTTYTransport(device)
	case listen != "":
		transport, err = NewTCPTransport(listen)
		if err == nil {
			fmt.Printf("[DUMP] listening on %s\n", listen)
		}
	case input != "":
		transport, err = NewFileTransport(input)
	}
	if err != nil {
		fmt.Printf("Failed to open transport: %v\n", err)
		os.Exit(1)
	}
	if transport != nil {
		dev.AttachTransport(transport)
		defer transport.Close()
	}

	sink, err := NewAudioSink(backend, sampleRate, dev.Pool())
	if err != nil {
		fmt.Printf("Failed to initialize audio: %v\n", err)
		os.Exit(1)
	}
	if err := sink.Start(); err != nil {
		fmt.Printf("Failed to start audio: %v\n", err)
		os.Exit(1)
	}
	defer sink.Close()

	var recorder *WavRecorder
	if wavPath != "" {
		recorder, err = NewWavRecorder(wavPath, sampleRate)
		if err != nil {
			fmt.Printf("Failed to open WAV output: %v\n", err)
			os.Exit(1)
		}
		dev.Pump().SetTap(recorder)
		fmt.Printf("[DUMP] recording to %s\n", wavPath)
	}

	var statusView *StatusView
	if !noStatus {
		statusView = NewStatusView(dev.Telemetry())
		statusView.Start()
	}

	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		close(stop)
	}()

	scriptDone := make(chan error, 1)
	if scriptPath != "" {
		runner := NewScriptRunner(dev, scriptPath)
		go func() { scriptDone <- runner.Run() }()
	}

	fmt.Printf("siddler_engine | audio %s | %s\n", backend, dev.Engine().Mode())
	dev.Run(stop)

	if statusView != nil {
		statusView.Stop()
	}
	if scriptPath != "" {
		select {
		case err := <-scriptDone:
			if err != nil {
				fmt.Fprintf(os.Stderr, "script error: %v\n", err)
			}
		default:
		}
	}
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "wav close: %v\n", err)
		}
	}
}
