package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"touchpilot"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("touchpilot v%s\n", version)
	fmt.Println("Capacitive touch trigger daemon with remote joystick passthrough")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  touchpilot [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads a capacitive touch channel and a sensitivity knob, smooths the")
	fmt.Println("  signal, tracks its resting level and turns touches into button A")
	fmt.Println("  presses. A UDP joystick remote drives the left stick and button B.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Microcontroller streaming \"touch,pot\" lines over USB serial")
	fmt.Println("  touchpilot -serial-device /dev/ttyACM0")
	fmt.Println()
	fmt.Println("  # Replay a recording with a fixed sensitivity and debug logging")
	fmt.Println("  touchpilot -source replay -replay capture.csv -sensitivity 1200 -log-level debug")
	fmt.Println()
	fmt.Println("  # Config file with flag overrides")
	fmt.Println("  touchpilot -config ~/.config/touchpilot.yaml -output gpio")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Keep hands off the pad for the first half second: the resting level")
	fmt.Println("    is calibrated at startup.")
	fmt.Println()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = flag.String("config", "", "Path to YAML config file")
		sourceKind   = flag.String("source", SourceSerial, "Sample source: serial|iio|replay")
		serialDevice = flag.String("serial-device", "/dev/ttyUSB0", "Serial device streaming \"touch,pot\" lines")
		serialBaud   = flag.Int("serial-baud", defaultSerialBaud, "Serial baud rate")
		iioTouch     = flag.String("iio-touch", "", "IIO sysfs attribute of the touch channel")
		iioPot       = flag.String("iio-pot", "", "IIO sysfs attribute of the sensitivity channel (optional)")
		replayPath   = flag.String("replay", "", "CSV recording to replay (touch,pot per row)")
		sensitivity  = flag.Int("sensitivity", 0, "Fixed sensitivity reading, replaces the pot")
		tickMS       = flag.Int("tick-ms", defaultTickMS, "Detection loop period in milliseconds")
		outputKind   = flag.String("output", OutputLog, "Button output: log|gpio")
		remotePort   = flag.Int("remote-port", defaultRemoteUDPPort, "UDP port of the joystick remote (0 disables)")
		ipcSocket    = flag.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for IPC (empty disables)")
		httpPort     = flag.Int("http-port", defaultHTTPPort, "Status HTTP port for /ws, /state, /healthz (0 disables)")
		logLevel     = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		logFormat    = flag.String("log-format", string(LogFormatText), "Log format: text, json")
		showVersion  = flag.Bool("version", false, "Print version and exit")
		showHelp     = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return nil
	}
	if *showVersion {
		printVersion()
		return nil
	}

	// Config file first, then only the flags given explicitly.
	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	pick := func(name string) bool { return set[name] }

	var o FlagOverrides
	if pick("source") {
		o.SourceKind = sourceKind
	}
	if pick("serial-device") {
		o.SerialDevice = serialDevice
	}
	if pick("serial-baud") {
		o.SerialBaud = serialBaud
	}
	if pick("iio-touch") {
		o.IIOTouchPath = iioTouch
	}
	if pick("iio-pot") {
		o.IIOPotPath = iioPot
	}
	if pick("replay") {
		o.ReplayPath = replayPath
		if !pick("source") {
			kind := SourceReplay
			o.SourceKind = &kind
		}
	}
	if pick("sensitivity") {
		o.Sensitivity = sensitivity
	}
	if pick("tick-ms") {
		o.TickMS = tickMS
	}
	if pick("output") {
		o.OutputKind = outputKind
	}
	if pick("remote-port") {
		o.RemoteUDPPort = remotePort
	}
	if pick("ipc-socket") {
		o.IPCSocketPath = ipcSocket
	}
	if pick("http-port") {
		o.HTTPPort = httpPort
	}
	if pick("log-level") {
		o.LogLevel = logLevel
	}
	if pick("log-format") {
		o.LogFormat = logFormat
	}
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	level, _ := parseLogLevel(cfg.Logging.Level)
	format, _ := parseLogFormat(cfg.Logging.Format)
	logger := setupLogger(level, format, os.Stdout)

	det, err := touchpilot.NewDetector(cfg.ToParams())
	if err != nil {
		return err
	}
	det.SetLogger(logger.With("component", "detector"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	src, err := openSource(cfg.Source, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := openOutput(cfg.Output, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("output close failed", "error", err)
		}
	}()

	logger.Info("starting touchpilot", "version", version, "source", cfg.Source.Kind, "output", cfg.Output.Kind)
	logger.Debug("configuration",
		"tick_ms", cfg.TickMS,
		"calibration_samples", cfg.Calibration.Samples,
		"calibration_interval_ms", cfg.Calibration.IntervalMS,
		"deviation_limit", cfg.Baseline.DeviationLimit,
		"baseline_alpha", cfg.Baseline.Alpha,
		"offset_min", cfg.Trigger.OffsetMin,
		"offset_max", cfg.Trigger.OffsetMax,
		"hysteresis_ratio", cfg.Trigger.HysteresisRatio,
		"fixed_sensitivity", cfg.Sensitivity.Fixed != nil,
		"remote_udp_port", cfg.Remote.UDPPort,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	if _, err := det.Calibrate(ctx, touchReader{src: src}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("shutting down during calibration")
			return nil
		}
		return fmt.Errorf("calibration: %w", err)
	}

	state := NewDaemonState(det, time.Now())
	logger.Info("session started", "session_id", state.SessionID, "baseline", det.Baseline())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, defaultEventsBuffer)
	var broadcasts chan StateBroadcast

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.Error(name+" failed", "error", err)
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	if cfg.HTTP.Port > 0 {
		broadcasts = make(chan StateBroadcast, defaultBroadcastsBuffer)
		server := NewServer(logger, events, ServerConfig{})
		mux := http.NewServeMux()
		server.Register(mux)

		spawn("ws hub", func(ctx context.Context) error {
			server.Hub().Run(ctx)
			return nil
		})
		spawn("ws broadcaster", func(ctx context.Context) error {
			RunBroadcaster(ctx, server.Hub(), broadcasts, logger)
			return nil
		})
		spawn("http server", func(ctx context.Context) error {
			return runHTTPServer(ctx, cfg.HTTP.Port, mux, logger)
		})
	}
	if cfg.IPC.SocketPath != "" {
		spawn("ipc server", func(ctx context.Context) error {
			return runIPCServer(ctx, cfg.IPC.SocketPath, events, logger)
		})
	}
	if cfg.Remote.UDPPort > 0 {
		spawn("remote listener", func(ctx context.Context) error {
			return runRemoteListener(ctx, cfg.Remote.Bind, cfg.Remote.UDPPort, events, logger)
		})
	}

	daemonErr := runDaemon(ctx, events, state, cfg.ToReducerConfig(), cfg.TickInterval(), daemonDeps{
		Source:     src,
		Output:     out,
		Broadcasts: broadcasts,
		Logger:     logger,
	})

	cancel()
	wg.Wait()

	// Leave button A released on exit.
	if det.State() == touchpilot.Pressed {
		if err := out.SetButton(ButtonA, false); err != nil {
			logger.Warn("release on exit failed", "error", err)
		}
	}

	snap := state.Snapshot()
	logger.Info("shutting down",
		"ticks", snap.Ticks,
		"presses", snap.Presses,
		"read_errors", snap.Faults.ReadErrors,
		"rejected_samples", snap.Faults.RejectedSamples,
		"chatter_warnings", snap.ChatterWarnings)

	if daemonErr != nil {
		return daemonErr
	}
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}
