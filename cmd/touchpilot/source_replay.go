package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// replaySource plays back a recorded CSV of "touch,pot" rows, one row per Read.
// A header row is skipped. Read returns io.EOF after the last row.
type replaySource struct {
	f   io.Closer
	r   *csv.Reader
	row int
}

func openReplaySource(path string) (*replaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	return newReplaySource(f), nil
}

func newReplaySource(rc io.ReadCloser) *replaySource {
	r := csv.NewReader(rc)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true
	return &replaySource{f: rc, r: r}
}

func (s *replaySource) Read() (Sample, error) {
	for {
		rec, err := s.r.Read()
		if err != nil {
			if err == io.EOF {
				return Sample{}, io.EOF
			}
			return Sample{}, fmt.Errorf("replay row %d: %w", s.row+1, err)
		}
		s.row++

		if len(rec) == 0 || len(rec) > 2 {
			return Sample{}, fmt.Errorf("replay row %d: expected 1 or 2 fields, got %d", s.row, len(rec))
		}
		smp, err := parseSampleFields(rec)
		if err != nil {
			if s.row == 1 {
				continue // header
			}
			return Sample{}, fmt.Errorf("replay row %d: %w", s.row, err)
		}
		return smp, nil
	}
}

func (s *replaySource) Close() error {
	return s.f.Close()
}
