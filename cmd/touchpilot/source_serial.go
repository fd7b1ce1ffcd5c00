package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// maxSerialLine bounds a single line; longer input is discarded as garbage.
const maxSerialLine = 128

// serialSource reads "<touch>,<pot>\n" lines from a microcontroller. A reader
// goroutine parses lines and keeps only the newest sample.
type serialSource struct {
	port   io.ReadCloser
	wait   time.Duration
	logger *slog.Logger

	latest chan Sample
	done   chan struct{}

	mu      sync.Mutex
	err     error
	closed  bool
	badLine uint64
}

func openSerialSource(cfg SerialConfig, logger *slog.Logger) (*serialSource, error) {
	timeout := time.Duration(cfg.ReadTimeoutMS) * time.Millisecond
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	logger.Info("serial source opened", "device", cfg.Device, "baud", cfg.Baud)
	return newSerialSource(port, timeout, logger), nil
}

// newSerialSource starts reading from port. wait bounds how long Read waits for a
// fresh sample; zero waits one default tick.
func newSerialSource(port io.ReadCloser, wait time.Duration, logger *slog.Logger) *serialSource {
	if wait <= 0 {
		wait = defaultTickMS * time.Millisecond
	}
	s := &serialSource{
		port:   port,
		wait:   wait,
		logger: logger,
		latest: make(chan Sample, 1),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s
}

func (s *serialSource) readLoop() {
	defer close(s.done)

	buf := make([]byte, 256)
	line := make([]byte, 0, maxSerialLine)

	for {
		n, err := s.port.Read(buf)
		for _, b := range buf[:n] {
			switch b {
			case '\n':
				s.handleLine(string(line))
				line = line[:0]
			case '\r':
			default:
				if len(line) >= maxSerialLine {
					line = line[:0]
					s.countBadLine("line too long")
					continue
				}
				line = append(line, b)
			}
		}

		if s.isClosed() {
			return
		}
		if err != nil {
			// tarm/serial reports an expired read timeout as io.EOF.
			if errors.Is(err, io.EOF) && n == 0 {
				continue
			}
			s.mu.Lock()
			s.err = fmt.Errorf("serial read: %w", err)
			s.mu.Unlock()
			return
		}
	}
}

func (s *serialSource) handleLine(line string) {
	if line == "" {
		return
	}
	smp, err := parseSampleLine(line)
	if err != nil {
		s.countBadLine(err.Error())
		return
	}

	// Latest wins.
	select {
	case s.latest <- smp:
	default:
		select {
		case <-s.latest:
		default:
		}
		select {
		case s.latest <- smp:
		default:
		}
	}
}

func (s *serialSource) countBadLine(reason string) {
	s.mu.Lock()
	s.badLine++
	n := s.badLine
	s.mu.Unlock()
	s.logger.Debug("serial line discarded", "reason", reason, "discarded", n)
}

func (s *serialSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Read returns the newest sample received since the previous Read.
func (s *serialSource) Read() (Sample, error) {
	select {
	case smp := <-s.latest:
		return smp, nil
	default:
	}

	timer := time.NewTimer(s.wait)
	defer timer.Stop()

	select {
	case smp := <-s.latest:
		return smp, nil
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return Sample{}, s.err
		}
		return Sample{}, io.EOF
	case <-timer.C:
		return Sample{}, errNoSample
	}
}

func (s *serialSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.port.Close()
}
