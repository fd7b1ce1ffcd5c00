//go:build linux

package main

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// iioSource samples Linux IIO ADC channels through sysfs. Each Read re-reads the
// attribute files at offset 0, which makes the kernel take a fresh conversion.
type iioSource struct {
	touchFD int
	potFD   int // -1 when no pot channel is configured
	buf     []byte
}

func newIIOSource(touchPath, potPath string) (Source, error) {
	touchFD, err := unix.Open(touchPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open iio channel %s: %w", touchPath, err)
	}
	s := &iioSource{touchFD: touchFD, potFD: -1, buf: make([]byte, 32)}

	if potPath != "" {
		potFD, err := unix.Open(potPath, unix.O_RDONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			_ = unix.Close(touchFD)
			return nil, fmt.Errorf("open iio channel %s: %w", potPath, err)
		}
		s.potFD = potFD
	}
	return s, nil
}

func (s *iioSource) readChannel(fd int) (string, error) {
	n, err := unix.Pread(fd, s.buf, 0)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(s.buf[:n])), nil
}

func (s *iioSource) Read() (Sample, error) {
	touch, err := s.readChannel(s.touchFD)
	if err != nil {
		return Sample{}, fmt.Errorf("read iio touch channel: %w", err)
	}
	fields := []string{touch}

	if s.potFD >= 0 {
		pot, err := s.readChannel(s.potFD)
		if err != nil {
			return Sample{}, fmt.Errorf("read iio pot channel: %w", err)
		}
		fields = append(fields, pot)
	}
	return parseSampleFields(fields)
}

func (s *iioSource) Close() error {
	err := unix.Close(s.touchFD)
	if s.potFD >= 0 {
		if perr := unix.Close(s.potFD); err == nil {
			err = perr
		}
	}
	return err
}
