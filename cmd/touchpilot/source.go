package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Sample is one reading from a touch source.
type Sample struct {
	Touch  float64
	Pot    int
	HasPot bool // false when the source has no sensitivity channel
}

// Source produces one Sample per detection tick.
//
// Read may block for at most about one tick. A Source that runs out of data returns
// io.EOF, which stops the daemon cleanly.
type Source interface {
	Read() (Sample, error)
	Close() error
}

// errNoSample means no fresh sample arrived in time; the tick is skipped.
var errNoSample = errors.New("no sample available")

// openSource builds the Source selected by cfg.
func openSource(cfg SourceConfig, logger *slog.Logger) (Source, error) {
	switch cfg.Kind {
	case SourceSerial:
		src, err := openSerialSource(cfg.Serial, logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case SourceIIO:
		return newIIOSource(cfg.IIO.TouchPath, cfg.IIO.PotPath)
	case SourceReplay:
		src, err := openReplaySource(ExpandPath(cfg.Replay.Path))
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// touchReader adapts a Source to touchpilot.RawSource for calibration. A source
// that has not produced its first sample yet is retried a bounded number of times.
type touchReader struct {
	src Source
}

func (t touchReader) ReadRaw() (float64, error) {
	for attempt := 1; ; attempt++ {
		smp, err := t.src.Read()
		if errors.Is(err, errNoSample) && attempt < calibrationReadAttempts {
			continue
		}
		if err != nil {
			return 0, err
		}
		return smp.Touch, nil
	}
}

// parseSampleLine parses "<touch>" or "<touch>,<pot>".
func parseSampleLine(line string) (Sample, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) == 0 || len(fields) > 2 || fields[0] == "" {
		return Sample{}, fmt.Errorf("malformed sample line %q", line)
	}
	return parseSampleFields(fields)
}

func parseSampleFields(fields []string) (Sample, error) {
	touch, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Sample{}, fmt.Errorf("parse touch %q: %w", fields[0], err)
	}
	smp := Sample{Touch: touch}
	if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
		pot, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return Sample{}, fmt.Errorf("parse pot %q: %w", fields[1], err)
		}
		smp.Pot = pot
		smp.HasPot = true
	}
	return smp, nil
}
