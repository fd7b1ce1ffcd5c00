package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"touchpilot"
)

// Config is the top-level YAML configuration for the touchpilot daemon.
//
// Defaults and validation live here so the rest of the daemon can assume a
// well-formed config.
type Config struct {
	// Where touch and sensitivity samples come from
	Source SourceConfig `yaml:"source"`

	// Sensitivity input range and optional fixed value
	Sensitivity SensitivityConfig `yaml:"sensitivity"`

	// Detector tuning
	Filter      FilterConfig      `yaml:"filter"`
	Baseline    BaselineConfig    `yaml:"baseline"`
	Trigger     TriggerConfig     `yaml:"trigger"`
	Calibration CalibrationConfig `yaml:"calibration"`

	// Detection loop period in milliseconds
	TickMS int `yaml:"tick_ms"`

	// Where button and stick state goes
	Output OutputConfig `yaml:"output"`

	// UDP joystick remote
	Remote RemoteConfig `yaml:"remote"`

	// Unix socket control (touchpilot-ctl)
	IPC IPCConfig `yaml:"ipc"`

	// Status HTTP server (/ws, /state, /healthz)
	HTTP HTTPConfig `yaml:"http"`

	// Press-rate monitor
	Chatter ChatterConfig `yaml:"chatter"`

	Logging LoggingConfig `yaml:"logging"`
}

const (
	SourceSerial = "serial"
	SourceIIO    = "iio"
	SourceReplay = "replay"

	OutputLog  = "log"
	OutputGPIO = "gpio"
)

type SourceConfig struct {
	Kind   string       `yaml:"kind"` // serial | iio | replay
	Serial SerialConfig `yaml:"serial"`
	IIO    IIOConfig    `yaml:"iio"`
	Replay ReplayConfig `yaml:"replay"`
}

type SerialConfig struct {
	Device        string `yaml:"device"`
	Baud          int    `yaml:"baud"`
	ReadTimeoutMS int    `yaml:"read_timeout_ms"`
}

type IIOConfig struct {
	TouchPath string `yaml:"touch_path"`         // e.g. /sys/bus/iio/devices/iio:device0/in_voltage0_raw
	PotPath   string `yaml:"pot_path,omitempty"` // optional second channel for the sensitivity knob
}

type ReplayConfig struct {
	Path string `yaml:"path"`
}

type SensitivityConfig struct {
	// Fixed, if set, replaces the pot reading from the source.
	Fixed *int `yaml:"fixed,omitempty"`
	InMin int  `yaml:"in_min"`
	InMax int  `yaml:"in_max"`
}

type FilterConfig struct {
	ErrorMeasure  float64 `yaml:"error_measure"`
	ErrorEstimate float64 `yaml:"error_estimate"`
	ProcessNoise  float64 `yaml:"process_noise"`
}

type BaselineConfig struct {
	DeviationLimit float64 `yaml:"deviation_limit"`
	Alpha          float64 `yaml:"alpha"`
}

type TriggerConfig struct {
	OffsetMin       float64 `yaml:"offset_min"`
	OffsetMax       float64 `yaml:"offset_max"`
	HysteresisRatio float64 `yaml:"hysteresis_ratio"`
}

type CalibrationConfig struct {
	Samples    int `yaml:"samples"`
	IntervalMS int `yaml:"interval_ms"`
}

type OutputConfig struct {
	Kind string     `yaml:"kind"` // log | gpio
	GPIO GPIOConfig `yaml:"gpio"`
}

type GPIOConfig struct {
	ButtonA   string `yaml:"button_a"` // pin name as known to gpioreg, e.g. GPIO17
	ButtonB   string `yaml:"button_b"`
	ActiveLow bool   `yaml:"active_low"`
}

type RemoteConfig struct {
	UDPPort int    `yaml:"udp_port"` // 0 disables the listener
	Bind    string `yaml:"bind,omitempty"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"` // empty disables IPC
}

type HTTPConfig struct {
	Port int `yaml:"port"` // 0 disables the status server
}

type ChatterConfig struct {
	WindowMS   int `yaml:"window_ms"`
	MaxPresses int `yaml:"max_presses"` // 0 disables the monitor
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Detector tuning mirrors touchpilot.DefaultParams.
func DefaultConfig() Config {
	p := touchpilot.DefaultParams()
	return Config{
		Source: SourceConfig{
			Kind: SourceSerial,
			Serial: SerialConfig{
				Device:        "/dev/ttyUSB0",
				Baud:          defaultSerialBaud,
				ReadTimeoutMS: defaultSerialTimeoutMS,
			},
		},
		Sensitivity: SensitivityConfig{
			InMin: p.SensitivityInMin,
			InMax: p.SensitivityInMax,
		},
		Filter: FilterConfig{
			ErrorMeasure:  p.ErrorMeasure,
			ErrorEstimate: p.ErrorEstimate,
			ProcessNoise:  p.ProcessNoise,
		},
		Baseline: BaselineConfig{
			DeviationLimit: p.DeviationLimit,
			Alpha:          p.BaselineAlpha,
		},
		Trigger: TriggerConfig{
			OffsetMin:       p.OffsetMin,
			OffsetMax:       p.OffsetMax,
			HysteresisRatio: p.HysteresisRatio,
		},
		Calibration: CalibrationConfig{
			Samples:    p.CalibrationSamples,
			IntervalMS: int(p.CalibrationInterval / time.Millisecond),
		},
		TickMS: defaultTickMS,
		Output: OutputConfig{
			Kind: OutputLog,
		},
		Remote: RemoteConfig{
			UDPPort: defaultRemoteUDPPort,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Chatter: ChatterConfig{
			WindowMS:   defaultChatterWindowMS,
			MaxPresses: defaultChatterMaxPress,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: string(LogFormatText),
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var trailing yaml.Node
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values that were explicitly set on the command line.
// Each non-nil pointer is applied, even if it holds a zero value.
type FlagOverrides struct {
	SourceKind   *string
	SerialDevice *string
	SerialBaud   *int
	IIOTouchPath *string
	IIOPotPath   *string
	ReplayPath   *string

	Sensitivity *int
	TickMS      *int

	OutputKind *string

	RemoteUDPPort *int
	IPCSocketPath *string
	HTTPPort      *int

	LogLevel  *string
	LogFormat *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.SourceKind != nil {
		cfg.Source.Kind = *o.SourceKind
	}
	if o.SerialDevice != nil {
		cfg.Source.Serial.Device = *o.SerialDevice
	}
	if o.SerialBaud != nil {
		cfg.Source.Serial.Baud = *o.SerialBaud
	}
	if o.IIOTouchPath != nil {
		cfg.Source.IIO.TouchPath = *o.IIOTouchPath
	}
	if o.IIOPotPath != nil {
		cfg.Source.IIO.PotPath = *o.IIOPotPath
	}
	if o.ReplayPath != nil {
		cfg.Source.Replay.Path = *o.ReplayPath
	}

	if o.Sensitivity != nil {
		v := *o.Sensitivity
		cfg.Sensitivity.Fixed = &v
	}
	if o.TickMS != nil {
		cfg.TickMS = *o.TickMS
	}

	if o.OutputKind != nil {
		cfg.Output.Kind = *o.OutputKind
	}

	if o.RemoteUDPPort != nil {
		cfg.Remote.UDPPort = *o.RemoteUDPPort
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		cfg.Logging.Format = *o.LogFormat
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Source
	switch c.Source.Kind {
	case SourceSerial:
		if c.Source.Serial.Device == "" {
			return errors.New("source.serial.device must not be empty")
		}
		if c.Source.Serial.Baud <= 0 {
			return errors.New("source.serial.baud must be > 0")
		}
		if c.Source.Serial.ReadTimeoutMS < 0 {
			return errors.New("source.serial.read_timeout_ms must be >= 0")
		}
	case SourceIIO:
		if c.Source.IIO.TouchPath == "" {
			return errors.New("source.iio.touch_path must not be empty")
		}
	case SourceReplay:
		if c.Source.Replay.Path == "" {
			return errors.New("source.replay.path must not be empty")
		}
	default:
		return fmt.Errorf("source.kind must be %q, %q or %q", SourceSerial, SourceIIO, SourceReplay)
	}

	// Detector tuning
	if err := c.ToParams().Validate(); err != nil {
		return err
	}
	if c.Calibration.IntervalMS < 0 {
		return errors.New("calibration.interval_ms must be >= 0")
	}
	if c.TickMS <= 0 || c.TickMS > 1000 {
		return errors.New("tick_ms must be between 1 and 1000")
	}

	// Output
	switch c.Output.Kind {
	case OutputLog:
	case OutputGPIO:
		if c.Output.GPIO.ButtonA == "" {
			return errors.New("output.gpio.button_a must not be empty")
		}
	default:
		return fmt.Errorf("output.kind must be %q or %q", OutputLog, OutputGPIO)
	}

	// Listeners
	if c.Remote.UDPPort < 0 || c.Remote.UDPPort > 65535 {
		return errors.New("remote.udp_port must be between 0 and 65535")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	// Chatter
	if c.Chatter.MaxPresses < 0 {
		return errors.New("chatter.max_presses must be >= 0")
	}
	if c.Chatter.MaxPresses > 0 && c.Chatter.WindowMS <= 0 {
		return errors.New("chatter.window_ms must be > 0 when chatter.max_presses is set")
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := parseLogFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging.format: %w", err)
	}

	return nil
}

// ToParams converts the file config into detector parameters.
func (c *Config) ToParams() touchpilot.Params {
	return touchpilot.Params{
		ErrorMeasure:        c.Filter.ErrorMeasure,
		ErrorEstimate:       c.Filter.ErrorEstimate,
		ProcessNoise:        c.Filter.ProcessNoise,
		CalibrationSamples:  c.Calibration.Samples,
		CalibrationInterval: time.Duration(c.Calibration.IntervalMS) * time.Millisecond,
		DeviationLimit:      c.Baseline.DeviationLimit,
		BaselineAlpha:       c.Baseline.Alpha,
		SensitivityInMin:    c.Sensitivity.InMin,
		SensitivityInMax:    c.Sensitivity.InMax,
		OffsetMin:           c.Trigger.OffsetMin,
		OffsetMax:           c.Trigger.OffsetMax,
		HysteresisRatio:     c.Trigger.HysteresisRatio,
	}
}

// ToReducerConfig extracts the settings the reducer needs.
func (c *Config) ToReducerConfig() ReducerConfig {
	return ReducerConfig{
		FixedSensitivity: c.Sensitivity.Fixed,
		ChatterWindow:    time.Duration(c.Chatter.WindowMS) * time.Millisecond,
		ChatterMax:       c.Chatter.MaxPresses,
	}
}

// TickInterval is the detection loop period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
