package profile

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/berfenger/s2mockrm/internal/core/port"
)

// solar.csv is an hourly irradiance week starting 2030-01-01, normalised to
// the panel peak.
//
//go:embed solar.csv
var solarCSV []byte

// CSVSource reads "timestamp,value" rows, timestamps in RFC3339. A header row
// is skipped.
type CSVSource struct {
	name string
	open func() (io.ReadCloser, error)
}

var _ port.ProfileSource = (*CSVSource)(nil)

func Embedded() *CSVSource {
	return &CSVSource{
		name: "solar.csv",
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(solarCSV)), nil
		},
	}
}

func File(path string) *CSVSource {
	return &CSVSource{
		name: path,
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// FromConfig picks the profile file when one is configured.
func FromConfig(path string) *CSVSource {
	if path == "" {
		return Embedded()
	}
	return File(path)
}

func (s *CSVSource) Samples() iter.Seq2[port.ProfileSample, error] {
	return func(yield func(port.ProfileSample, error) bool) {
		rc, err := s.open()
		if err != nil {
			yield(port.ProfileSample{}, err)
			return
		}
		defer rc.Close()

		r := csv.NewReader(rc)
		r.FieldsPerRecord = 2
		r.TrimLeadingSpace = true
		line := 0
		for {
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			line++
			if err != nil {
				yield(port.ProfileSample{}, fmt.Errorf("%s: %w", s.name, err))
				return
			}
			if line == 1 && strings.EqualFold(record[0], "timestamp") {
				continue
			}
			sample, err := parseRow(record)
			if err != nil {
				yield(port.ProfileSample{}, fmt.Errorf("%s line %d: %w", s.name, line, err))
				return
			}
			if !yield(sample, nil) {
				return
			}
		}
	}
}

func parseRow(record []string) (port.ProfileSample, error) {
	ts, err := time.Parse(time.RFC3339, record[0])
	if err != nil {
		return port.ProfileSample{}, err
	}
	value, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return port.ProfileSample{}, err
	}
	return port.ProfileSample{Timestamp: ts.UTC(), Value: value}, nil
}
